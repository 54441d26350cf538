// Package imapauth verifies user credentials against a remote IMAP server.
//
// A successful login followed by one CAPABILITY exchange is the entire
// authentication signal; no mailbox is ever opened. Submitted usernames are
// resolved against a configurable domain policy before the server is
// contacted, and probe failures are classified into a closed taxonomy of
// connection, authentication, and protocol errors.
package imapauth
