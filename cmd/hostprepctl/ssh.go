package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/ssh"
)

// clientConfig returns the ssh client config for the private key in the identity file ident.
func clientConfig(ident string) (*ssh.ClientConfig, error) {
	if ident == "" {
		return nil, fmt.Errorf("identity file not given, -i flag")
	}
	key, err := os.ReadFile(ident)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("identity file %q: %w", ident, err)
	}
	u, err := user.Current()
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            u.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}, nil
}

// querySSH runs command with args on the hostprep ssh server on at and returns what it wrote. A non-zero exit is
// an error carrying the output.
func querySSH(ctx *cli.Context, at, command string, args ...string) ([]byte, error) {
	config, err := clientConfig(ctx.String("i"))
	if err != nil {
		return nil, err
	}
	port := ctx.String("p")
	if port == "" {
		port = "2222"
	}

	client, err := ssh.Dial("tcp", net.JoinHostPort(at, port), config)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	ss, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	defer ss.Close()

	stdoutBuf := &bytes.Buffer{}
	ss.Stdout = stdoutBuf

	cmdline := strings.TrimSpace(command + " " + strings.Join(args, " "))
	if err := ss.Run(cmdline); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", cmdline, strings.TrimSpace(stdoutBuf.String()), err)
	}
	return stdoutBuf.Bytes(), nil
}
