package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/infodancer/imapauth/internal/config"
	"github.com/infodancer/imapauth/internal/logging"
	"github.com/infodancer/imapauth/internal/metrics"
)

// runCheck verifies a single credential pair and reports the result through
// the exit status: 0 accepted, 1 denied, 2 usage or configuration error.
// Credentials come from the remaining arguments, or from two lines on stdin
// so the password stays out of the process list.
func runCheck(cfg config.Config, args []string) int {
	var username, password string

	switch len(args) {
	case 2:
		username, password = args[0], args[1]
	case 0:
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr, "usage: imapauthd -check [username password]")
			return 2
		}
		username = strings.TrimRight(scanner.Text(), "\r\n")
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr, "missing password on stdin")
			return 2
		}
		password = strings.TrimRight(scanner.Text(), "\r\n")
	default:
		fmt.Fprintln(os.Stderr, "usage: imapauthd -check [username password]")
		return 2
	}

	logger := logging.NewLogger(cfg.LogLevel)

	agent, err := buildAgent(cfg, logger, &metrics.NoopCollector{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating agent: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.IMAP.Timeout())
	defer cancel()

	id, err := agent.Authenticate(ctx, username, password)
	if err != nil {
		fmt.Println("denied")
		return 1
	}

	if len(id.Groups) > 0 {
		fmt.Printf("ok %s groups=%s\n", id.StoredUID, strings.Join(id.Groups, ","))
	} else {
		fmt.Printf("ok %s\n", id.StoredUID)
	}
	return 0
}
