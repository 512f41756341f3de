// Command ecliptixctl is a local demonstration harness: it wires up two
// in-process identities, runs a full handshake between them, and exchanges
// a few envelopes end to end, printing what happened at each step.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ecliptix-labs/ecliptix-core/protocolsvc"
)

var oneTimePreKeyCount int

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ecliptixctl",
		Short: "Exercise an Ecliptix handshake and message round trip locally",
	}
	root.PersistentFlags().IntVar(&oneTimePreKeyCount, "one-time-prekeys", 5, "one-time pre-keys to generate per identity")
	root.AddCommand(demoCmd())
	return root
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a two-party handshake and message exchange",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
}

func runDemo() error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	alice, err := protocolsvc.NewSystem(oneTimePreKeyCount, protocolsvc.NewLogrusLogger(log))
	if err != nil {
		return fmt.Errorf("creating alice: %w", err)
	}
	defer alice.Close()

	bob, err := protocolsvc.NewSystem(oneTimePreKeyCount, protocolsvc.NewLogrusLogger(log))
	if err != nil {
		return fmt.Errorf("creating bob: %w", err)
	}
	defer bob.Close()

	aliceConn, initMsg, err := alice.BeginHandshakeAsInitiator(bob.PublicBundle())
	if err != nil {
		return fmt.Errorf("alice beginning handshake: %w", err)
	}

	bobConn, ackMsg, err := bob.BeginHandshakeAsResponder(initMsg, bob.PublicBundle().OneTimePreKeys[0].PreKeyID)
	if err != nil {
		return fmt.Errorf("bob answering handshake: %w", err)
	}

	if err := alice.CompleteHandshakeAsInitiator(aliceConn, ackMsg); err != nil {
		return fmt.Errorf("alice completing handshake: %w", err)
	}

	ad := []byte("ecliptixctl-demo")
	messages := []string{"hello from alice", "how's the ratchet?", "all good on this end"}
	for _, m := range messages {
		env, err := alice.Send(aliceConn, ad, []byte(m))
		if err != nil {
			return fmt.Errorf("alice sending %q: %w", m, err)
		}
		plaintext, err := bob.Receive(bobConn, ad, env)
		if err != nil {
			return fmt.Errorf("bob receiving %q: %w", m, err)
		}
		fmt.Printf("bob received: %s\n", plaintext)
	}
	return nil
}
