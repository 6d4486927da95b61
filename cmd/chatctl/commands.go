package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/client"
	"github.com/prudhvinik1/cipherchat/internal/config"
	"github.com/prudhvinik1/cipherchat/internal/deployments"
	"github.com/prudhvinik1/cipherchat/internal/utils"
	"github.com/sirupsen/logrus"
)

// errUsage means the usage text has already been printed.
var errUsage = errors.New("invalid usage")

// session is what every subcommand needs once flags are parsed.
type session struct {
	cfg   *config.ClientConfig
	store client.MessageStore
	local *client.LocalStore
}

func (s *session) Close() {
	if err := s.local.Close(); err != nil {
		logrus.Warnf("Failed to close local store: %v", err)
	}
}

func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: chatctl %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags reports any parse failure as errUsage, except -help which
// comes back as flag.ErrHelp.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return errUsage
}

func loadConfig() (*config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logrus.SetLevel(cfg.LogLevel)
	logrus.SetOutput(os.Stderr)
	return cfg, nil
}

func loadKey(cfg *config.ClientConfig) (*ecdsa.PrivateKey, error) {
	if cfg.PrivateKey == "" {
		return nil, nil
	}
	key, err := utils.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_PRIVATE_KEY: %w", err)
	}
	return key, nil
}

// connect opens the local store and picks the backend. The caller owns the
// returned session and must Close it.
func connect(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	key, err := loadKey(cfg)
	if err != nil {
		return nil, err
	}

	var caller common.Address
	if key != nil {
		caller = utils.AddressOf(key)
	}

	local, err := client.OpenLocalStore(cfg.LocalDB, caller)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	store, err := client.Connect(ctx, client.ConnectOptions{
		RPCURL:      cfg.RPCURL,
		Network:     cfg.Network,
		Deployments: deployments.NewLoader(cfg.Deployments, nil),
		Key:         key,
		Local:       local,
	})
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &session{cfg: cfg, store: store, local: local}, nil
}

func requireWallet(s *session) error {
	if s.store.Caller() == (common.Address{}) {
		return errors.New("CHAT_PRIVATE_KEY is required")
	}
	return nil
}

func printMessages(messages []client.ChatMessage) {
	if len(messages) == 0 {
		fmt.Println("(no messages)")
		return
	}
	for _, m := range messages {
		who := "you"
		if m.IsResponse {
			who = "bot"
		}
		marker := ""
		if m.Failed {
			marker = " [!]"
		}
		fmt.Printf("#%d %s %-3s%s %s\n", m.Index, m.Timestamp.Format(time.DateTime), who, marker, m.Text)
	}
}

func sendCmd(args []string) error {
	fs := newFlagSet("send", "send -password <password> <text>")
	password := fs.String("password", os.Getenv("CHAT_PASSWORD"), "encryption password")
	timeout := fs.Duration("timeout", time.Minute, "total operation timeout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	text := strings.Join(fs.Args(), " ")
	if text == "" || *password == "" {
		fs.Usage()
		return errUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := requireWallet(s); err != nil {
		return err
	}

	messages, err := client.NewChat(s.store).Send(ctx, text, *password)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	printMessages(messages)
	return nil
}

func readCmd(args []string) error {
	fs := newFlagSet("read", "read -password <password>")
	password := fs.String("password", os.Getenv("CHAT_PASSWORD"), "decryption password")
	timeout := fs.Duration("timeout", time.Minute, "total operation timeout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *password == "" {
		fs.Usage()
		return errUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	messages, err := client.NewChat(s.store).DecryptAll(ctx, *password)
	if err != nil {
		return fmt.Errorf("read failed: %w", err)
	}
	printMessages(messages)
	return nil
}

func countCmd(args []string) error {
	fs := newFlagSet("count", "count [-address <address>]")
	address := fs.String("address", "", "address to count (defaults to your wallet)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	user := s.store.Caller()
	if *address != "" {
		parsed, err := utils.ParseAddress(*address)
		if err != nil {
			return err
		}
		user = parsed
	}

	count, err := s.store.GetMessageCount(ctx, user)
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	fmt.Printf("%s has %d messages (%s)\n", user.Hex(), count, s.store.Backend())
	return nil
}

func clearCmd(args []string) error {
	fs := newFlagSet("clear", "clear")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := requireWallet(s); err != nil {
		return err
	}

	if err := client.NewChat(s.store).Clear(ctx); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	fmt.Println("Messages cleared")
	return nil
}

func requestDecryptionCmd(args []string) error {
	fs := newFlagSet("request-decryption", "request-decryption")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := requireWallet(s); err != nil {
		return err
	}

	receipt, err := client.NewChat(s.store).RequestDecryption(ctx)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	fmt.Printf("Decryption requested (tx %s)\n", receipt.TxHash)
	return nil
}

func deploymentsCmd(args []string) error {
	fs := newFlagSet("deployments", "deployments [-json]")
	asJSON := fs.Bool("json", false, "print raw JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deployed, err := deployments.NewLoader(cfg.Deployments, nil).Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load deployments: %w", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(deployed)
	}

	networks := make([]string, 0, len(deployed))
	for network := range deployed {
		networks = append(networks, network)
	}
	sort.Strings(networks)
	for _, network := range networks {
		active := ""
		if network == cfg.Network {
			active = " *"
		}
		fmt.Printf("%-10s %s%s\n", network, deployed[network].Hex(), active)
	}
	return nil
}
