package wstransport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/types"
)

func selfAnnounceFor(t *testing.T, self types.NodeId, secret ed25519.PrivateKey) []byte {
	t.Helper()
	env, err := envelope.NewBuilder("announce-1", self, types.NodeId{}, types.MessageTypePeerAnnounce, []byte("hi"), 1000).
		TTL(0).
		Sign(secret)
	require.NoError(t, err)
	frame, err := env.ToBytes()
	require.NoError(t, err)
	return frame
}

func TestSendRawRoundTrip(t *testing.T) {
	var received [][]byte
	var mu sync.Mutex
	server := New(func(data []byte) {
		mu.Lock()
		received = append(received, data)
		mu.Unlock()
	}, nil)

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	var peer types.NodeId
	peer[0] = 1

	client := New(func([]byte) {}, nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx, peer, url))

	require.NoError(t, client.SendRaw(peer, []byte("hello")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, []byte("hello"), received[0])
	mu.Unlock()
}

func TestSendRawUnknownPeerFails(t *testing.T) {
	client := New(func([]byte) {}, nil)
	var peer types.NodeId
	peer[0] = 2
	err := client.SendRaw(peer, []byte("x"))
	require.Error(t, err)
}

func TestConnectedPeersReflectsDials(t *testing.T) {
	server := New(func([]byte) {}, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	client := New(func([]byte) {}, nil)
	var peer types.NodeId
	peer[0] = 3
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx, peer, url))

	require.Contains(t, client.ConnectedPeers(), peer)
}

func TestConnectAddrBootstrapHandshake(t *testing.T) {
	serverPub, serverSecret, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	var serverSelf types.NodeId
	copy(serverSelf[:], serverPub)

	clientPub, clientSecret, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	var clientSelf types.NodeId
	copy(clientSelf[:], clientPub)

	var serverReceived [][]byte
	var mu sync.Mutex
	server := New(func(data []byte) {
		mu.Lock()
		serverReceived = append(serverReceived, data)
		mu.Unlock()
	}, func() ([]byte, error) {
		return selfAnnounceFor(t, serverSelf, serverSecret), nil
	})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	client := New(func([]byte) {}, nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	learnedPeer, err := client.ConnectAddr(ctx, url, selfAnnounceFor(t, clientSelf, clientSecret))
	require.NoError(t, err)
	require.Equal(t, serverSelf, learnedPeer)
	require.Contains(t, client.ConnectedPeers(), serverSelf)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(serverReceived) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
