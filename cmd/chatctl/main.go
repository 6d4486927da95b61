package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	godotenv.Load()

	err := run(os.Args[1:])
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		os.Exit(1)
	default:
		logrus.Fatal(err)
	}
}

// run dispatches one subcommand. Every store a command opens is closed by
// the time it returns.
func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return errUsage
	}

	switch args[0] {
	case "send":
		return sendCmd(args[1:])
	case "read":
		return readCmd(args[1:])
	case "count":
		return countCmd(args[1:])
	case "clear":
		return clearCmd(args[1:])
	case "request-decryption":
		return requestDecryptionCmd(args[1:])
	case "deployments":
		return deploymentsCmd(args[1:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		return errUsage
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `chatctl - encrypted chat over the message store contract

Usage:
  chatctl <command> [options]

Commands:
  send                 Encrypt and store a message, then print the conversation
  read                 Fetch and decrypt the conversation
  count                Print how many messages an address has stored
  clear                Delete every message you have stored
  request-decryption   Emit a DecryptionRequested event
  deployments          Print the network -> contract map

Environment:
  CHAT_RPC_URL         chat server base URL (default http://localhost:8080)
  CHAT_NETWORK         network id to look up in the deployment map (default 31337)
  CHAT_DEPLOYMENTS     deployment map file or URL
  CHAT_PRIVATE_KEY     hex wallet key used to sign in for writes
  CHAT_LOCAL_DB        SQLite file used when no contract is deployed

Examples:
  chatctl send -password hunter2 "hello there"
  chatctl read -password hunter2
  chatctl count -address 0x70997970C51812dc3A010C7d01b50e0d17dc79C8

For more information on each command, use:
  chatctl <command> -help
`)
}
