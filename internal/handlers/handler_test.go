package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/prudhvinik1/cipherchat/internal/deployments"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/prudhvinik1/cipherchat/internal/repositories"
	"github.com/prudhvinik1/cipherchat/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	alice        = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bob          = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

// fakeAuth treats the bearer token as the caller's hex address.
type fakeAuth struct{}

func (fakeAuth) Challenge(_ context.Context, address common.Address) (*models.Challenge, error) {
	return &models.Challenge{Address: address, Nonce: "n", Message: "sign me"}, nil
}

func (fakeAuth) Login(_ context.Context, req services.LoginRequest) (*services.LoginResponse, error) {
	if req.Signature != "good" {
		return nil, services.ErrInvalidCredentials
	}
	return &services.LoginResponse{Token: req.Address.Hex(), Address: req.Address, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (fakeAuth) Authenticate(_ context.Context, token string) (*services.TokenClaims, error) {
	if !common.IsHexAddress(token) {
		return nil, services.ErrInvalidToken
	}
	return &services.TokenClaims{Address: common.HexToAddress(token), SessionID: "s"}, nil
}

func (fakeAuth) Logout(_ context.Context, token string) error {
	if !common.IsHexAddress(token) {
		return services.ErrInvalidToken
	}
	return nil
}

func (fakeAuth) LogoutAll(context.Context, string) error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := services.NewMessageService(testContract, repositories.NewMemoryMessageRepository(), repositories.NewMemoryEventRepository())
	h := NewHandler(svc, fakeAuth{}, deployments.Map{"31337": testContract})
	server := httptest.NewServer(NewRouter(h))
	t.Cleanup(server.Close)
	return server
}

func contractURL(server *httptest.Server) string {
	return server.URL + "/v1/contracts/" + testContract.Hex()
}

func doJSON(t *testing.T, method, url string, caller *common.Address, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+caller.Hex())
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandler_StoreAndRead(t *testing.T) {
	server := newTestServer(t)
	base := contractURL(server)

	// ACT: Alice stores a message and a response
	resp := doJSON(t, http.MethodPost, base+"/messages", &alice, models.ContentRequest{EncryptedContent: []byte("blob-1")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var receipt models.Receipt
	decode(t, resp, &receipt)
	assert.Equal(t, alice, receipt.From)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, models.EventMessageStored, receipt.Events[0].Name)

	resp = doJSON(t, http.MethodPost, base+"/responses", &alice, models.ContentRequest{EncryptedContent: []byte("blob-2")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// ASSERT: Anyone can read alice's list
	userURL := base + "/users/" + alice.Hex()

	resp = doJSON(t, http.MethodGet, userURL+"/messages/count", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count models.CountResponse
	decode(t, resp, &count)
	assert.Equal(t, uint64(2), count.Count)

	resp = doJSON(t, http.MethodGet, userURL+"/messages/1/metadata", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var metadata models.MessageMetadata
	decode(t, resp, &metadata)
	assert.True(t, metadata.IsResponse)
	assert.Equal(t, testContract, metadata.Sender)

	resp = doJSON(t, http.MethodGet, userURL+"/messages/0/content", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var content models.ContentResponse
	decode(t, resp, &content)
	assert.Equal(t, []byte("blob-1"), content.EncryptedContent)

	resp = doJSON(t, http.MethodGet, userURL+"/messages/0", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var message models.Message
	decode(t, resp, &message)
	assert.Equal(t, alice, message.Sender)
	assert.False(t, message.IsResponse)

	resp = doJSON(t, http.MethodGet, userURL+"/messages", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all models.MessagesResponse
	decode(t, resp, &all)
	require.Len(t, all.Messages, 2)
	assert.Equal(t, []byte("blob-2"), all.Messages[1].EncryptedContent)

	resp = doJSON(t, http.MethodGet, userURL+"/events", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events models.EventsResponse
	decode(t, resp, &events)
	assert.Len(t, events.Events, 2)
}

func TestHandler_Validation(t *testing.T) {
	server := newTestServer(t)
	base := contractURL(server)

	resp := doJSON(t, http.MethodPost, base+"/messages", &alice, models.ContentRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/messages", &alice, models.ContentRequest{EncryptedContent: make([]byte, services.MaxContentSize+1)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/users/"+alice.Hex()+"/messages/0", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/users/not-an-address/messages/count", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/users/"+alice.Hex()+"/messages/-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_UnknownContract(t *testing.T) {
	server := newTestServer(t)
	other := common.HexToAddress("0x0000000000000000000000000000000000000001")

	resp := doJSON(t, http.MethodGet, server.URL+"/v1/contracts/"+other.Hex()+"/users/"+alice.Hex()+"/messages/count", nil, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body errorResponse
	decode(t, resp, &body)
	assert.Equal(t, "contract not deployed", body.Error)
}

func TestHandler_WritesRequireAuth(t *testing.T) {
	server := newTestServer(t)
	base := contractURL(server)

	resp := doJSON(t, http.MethodPost, base+"/messages", nil, models.ContentRequest{EncryptedContent: []byte("x")})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, base+"/messages", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_ClearOnlyCaller(t *testing.T) {
	server := newTestServer(t)
	base := contractURL(server)

	for _, caller := range []common.Address{alice, bob} {
		c := caller
		resp := doJSON(t, http.MethodPost, base+"/messages", &c, models.ContentRequest{EncryptedContent: []byte("x")})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodDelete, base+"/messages", &alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var count models.CountResponse
	decode(t, doJSON(t, http.MethodGet, base+"/users/"+alice.Hex()+"/messages/count", nil, nil), &count)
	assert.Equal(t, uint64(0), count.Count)
	decode(t, doJSON(t, http.MethodGet, base+"/users/"+bob.Hex()+"/messages/count", nil, nil), &count)
	assert.Equal(t, uint64(1), count.Count)
}

func TestHandler_RequestDecryption(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, contractURL(server)+"/decryption-requests", &alice, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var receipt models.Receipt
	decode(t, resp, &receipt)
	assert.Equal(t, models.EventDecryptionRequested, receipt.Events[0].Name)
}

func TestHandler_AuthEndpoints(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/v1/auth/challenge", nil, models.ChallengeRequest{Address: alice})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/v1/auth/login", nil, models.LoginRequest{Address: alice, Signature: "bad"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/v1/auth/login", nil, models.LoginRequest{Address: alice, Signature: "good"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var token models.TokenResponse
	decode(t, resp, &token)
	assert.Equal(t, alice, token.Address)

	resp = doJSON(t, http.MethodPost, server.URL+"/v1/auth/challenge", nil, map[string]string{"address": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_LogoutEndedSession(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/v1/auth/logout", &alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// ACT: Log out with a token whose session no longer exists
	req, err := http.NewRequest(http.MethodPost, server.URL+"/v1/auth/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer ended-session")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// ASSERT
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_Deployments(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/v1/deployments", nil, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw bytes.Buffer
	_, err := raw.ReadFrom(resp.Body)
	require.NoError(t, err)
	parsed, err := deployments.Parse(raw.Bytes())
	require.NoError(t, err)
	assert.Equal(t, testContract, parsed["31337"])
}

func TestHandler_StreamEvents(t *testing.T) {
	server := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(contractURL(server), "http") + "/events/ws?user=" + bob.Hex()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the handler a moment to subscribe before emitting.
	time.Sleep(50 * time.Millisecond)

	resp := doJSON(t, http.MethodPost, contractURL(server)+"/messages", &alice, models.ContentRequest{EncryptedContent: []byte("a")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, contractURL(server)+"/messages", &bob, models.ContentRequest{EncryptedContent: []byte("b")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.ContractEvent
	require.NoError(t, conn.ReadJSON(&event))

	// Alice's event is filtered out; the first frame is bob's.
	assert.Equal(t, bob, event.User)
	assert.Equal(t, models.EventMessageStored, event.Name)
}
