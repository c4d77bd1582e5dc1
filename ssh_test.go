package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/miekg/hostprep/proto"
	"github.com/phayes/freeport"
	gossh "golang.org/x/crypto/ssh"
)

func TestSSH(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := gossh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	port, err := freeport.GetFreePort()
	if err != nil {
		t.Fatal(err)
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	c := Config{
		Keys:  []string{string(gossh.MarshalAuthorizedKey(signer.PublicKey()))},
		Hosts: []*Host{newHost("ui1.example.net")},
	}
	srv, err := newSSHServer(c, addr)
	if err != nil {
		t.Fatal(err)
	}
	go srv.ListenAndServe()
	defer srv.Close()

	for i := 0; i < 50; i++ {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	config := &gossh.ClientConfig{
		User:            "test",
		Auth:            []gossh.AuthMethod{gossh.PublicKeys(signer)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
	}
	client, err := gossh.Dial("tcp", addr, config)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	out, err := sess.Output("/list/hosts")
	sess.Close()
	if err != nil {
		t.Fatal(err)
	}
	lh := proto.ListHosts{}
	if err := json.Unmarshal(out, &lh); err != nil {
		t.Fatalf("failed to parse %q: %s", out, err)
	}
	if len(lh.ListHosts) != 1 || lh.ListHosts[0].Machine != "ui1.example.net" {
		t.Errorf("unexpected hosts %+v", lh.ListHosts)
	}

	for _, test := range []struct {
		Command string
		Fail    bool
	}{
		{"/list/host ui1.example.net", false},
		{"/list/host db1.example.net", true},
		{"/state/apply ui1.example.net", false},
		{"/state/apply ui1.example.net", true}, // already pending
		{"/state/apply db1.example.net", true},
		{"/state/apply", true},
		{"/nonsense", true},
	} {
		sess, err := client.NewSession()
		if err != nil {
			t.Fatal(err)
		}
		_, err = sess.Output(test.Command)
		sess.Close()
		if test.Fail && err == nil {
			t.Errorf("%q: expected error, got none", test.Command)
		}
		if !test.Fail && err != nil {
			t.Errorf("%q: expected no error, got %s", test.Command, err)
		}
	}
}

func TestSSHUnknownKey(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(rand.Reader)
	signer, _ := gossh.NewSignerFromKey(priv)
	_, other, _ := ed25519.GenerateKey(rand.Reader)
	otherSigner, _ := gossh.NewSignerFromKey(other)

	port, err := freeport.GetFreePort()
	if err != nil {
		t.Fatal(err)
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	c := Config{Keys: []string{string(gossh.MarshalAuthorizedKey(signer.PublicKey()))}}
	srv, err := newSSHServer(c, addr)
	if err != nil {
		t.Fatal(err)
	}
	go srv.ListenAndServe()
	defer srv.Close()
	time.Sleep(100 * time.Millisecond)

	config := &gossh.ClientConfig{
		User:            "test",
		Auth:            []gossh.AuthMethod{gossh.PublicKeys(otherSigner)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
	}
	if _, err := gossh.Dial("tcp", addr, config); err == nil {
		t.Fatal("expected authentication to fail")
	}
}

func TestSSHBadKey(t *testing.T) {
	if _, err := newSSHServer(Config{Keys: []string{"not a key"}}, ":0"); err == nil {
		t.Fatal("expected error for unparsable key")
	}
}
