package signal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeferson-byte-ai/Orbis/internal/app/sfu"
	"github.com/jeferson-byte-ai/Orbis/internal/audio"
	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
)

type ingestCall struct {
	room       domain.RoomID
	pid        domain.ParticipantID
	raw        []byte
	sampleRate int
	lang       domain.Language
}

type fakeIngestor struct {
	mu    sync.Mutex
	calls []ingestCall
}

func (f *fakeIngestor) Ingest(room domain.RoomID, pid domain.ParticipantID, raw []byte, sampleRate int, lang domain.Language) error {
	f.mu.Lock()
	f.calls = append(f.calls, ingestCall{room, pid, raw, sampleRate, lang})
	f.mu.Unlock()
	return nil
}

func (f *fakeIngestor) snapshot() []ingestCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ingestCall(nil), f.calls...)
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := NewServer(cfg, sfu.NewManager(sfu.Config{Workers: 2}), nil)
	r := gin.New()
	r.GET("/ws/:roomId", func(c *gin.Context) {
		srv.Handle(context.Background(), c, domain.RoomID(c.Param("roomId")), c.Query("displayName"))
	})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, room, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + room + "?displayName=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func readType(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	m := readMsg(t, conn)
	require.Equal(t, want, m["type"], "unexpected message: %v", m)
	return m
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestWelcomeAndCapabilities(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "r1", "alice")

	welcome := readType(t, conn, "welcome")
	assert.NotEmpty(t, welcome["participantId"])
	assert.Equal(t, "r1", welcome["roomId"])
	assert.Equal(t, "alice", welcome["displayName"])
	caps := welcome["rtpCapabilities"].(map[string]any)
	assert.NotEmpty(t, caps["codecs"])

	send(t, conn, map[string]any{"type": "getRouterRtpCapabilities"})
	resp := readType(t, conn, "routerRtpCapabilities")
	assert.NotEmpty(t, resp["rtpCapabilities"])
}

func TestTransportProduceConsumeFlow(t *testing.T) {
	srv, ts := newTestServer(t, Config{})

	alice := dial(t, ts, "r1", "alice")
	readType(t, alice, "welcome")

	bob := dial(t, ts, "r1", "bob")
	readType(t, bob, "welcome")
	joined := readType(t, alice, "participantJoined")
	assert.Equal(t, "bob", joined["displayName"])

	// alice: send transport, connect, produce
	send(t, alice, map[string]any{"type": "createWebRtcTransport", "direction": "send"})
	created := readType(t, alice, "transportCreated")
	assert.Equal(t, "send", created["direction"])
	ice := created["iceParameters"].(map[string]any)
	assert.NotEmpty(t, ice["usernameFragment"])

	send(t, alice, map[string]any{
		"type":           "connectWebRtcTransport",
		"transportId":    created["id"],
		"dtlsParameters": map[string]any{"fingerprints": []any{}},
	})
	readType(t, alice, "transportConnected")

	send(t, alice, map[string]any{
		"type":          "produce",
		"kind":          "audio",
		"rtpParameters": map[string]any{"codecs": []any{}},
	})
	produced := readType(t, alice, "produced")
	assert.Equal(t, "audio", produced["kind"])

	newProd := readType(t, bob, "newProducer")
	assert.Equal(t, produced["id"], newProd["producerId"])

	// bob: recv transport, consume alice's producer
	send(t, bob, map[string]any{"type": "createWebRtcTransport", "direction": "recv"})
	bobCreated := readType(t, bob, "transportCreated")

	send(t, bob, map[string]any{
		"type":            "consume",
		"producerId":      newProd["producerId"],
		"rtpCapabilities": map[string]any{},
	})
	consumed := readType(t, bob, "consumed")
	assert.Equal(t, newProd["producerId"], consumed["producerId"])
	assert.Equal(t, "audio", consumed["kind"])
	_ = bobCreated

	assert.Equal(t, 2, srv.Stats().Participants)
}

func TestConsumeMissingProducer(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "r1", "bob")
	readType(t, conn, "welcome")

	send(t, conn, map[string]any{"type": "createWebRtcTransport", "direction": "recv"})
	readType(t, conn, "transportCreated")

	send(t, conn, map[string]any{"type": "consume", "producerId": "producer-nope"})
	errMsg := readType(t, conn, "error")
	assert.Contains(t, errMsg["error"], "not found")

	// connection survives the failure
	send(t, conn, map[string]any{"type": "getRouterRtpCapabilities"})
	readType(t, conn, "routerRtpCapabilities")
}

func TestUnknownMessageKeepsConnectionOpen(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "r1", "alice")
	readType(t, conn, "welcome")

	send(t, conn, map[string]any{"type": "fly"})
	errMsg := readType(t, conn, "error")
	assert.Contains(t, errMsg["error"], "unknown type")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	readType(t, conn, "error")

	send(t, conn, map[string]any{"type": "getRouterRtpCapabilities"})
	readType(t, conn, "routerRtpCapabilities")
}

func TestSetLanguages(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "r1", "bob")
	welcome := readType(t, conn, "welcome")
	pid := domain.ParticipantID(welcome["participantId"].(string))

	send(t, conn, map[string]any{
		"type":            "setLanguages",
		"sourceLanguage":  "pt",
		"targetLanguages": []string{"fr", "en"},
	})
	resp := readType(t, conn, "languagesSet")
	assert.Equal(t, "pt", resp["sourceLanguage"])

	p, ok := srv.Participant("r1", pid)
	require.True(t, ok)
	assert.Equal(t, domain.Language("pt"), p.SourceLanguage)
	assert.Equal(t, domain.Language("fr"), p.ActiveTarget())

	send(t, conn, map[string]any{
		"type":            "setLanguages",
		"sourceLanguage":  "xx",
		"targetLanguages": []string{"fr"},
	})
	errMsg := readType(t, conn, "error")
	assert.Contains(t, errMsg["error"], "unsupported source language")
}

func TestParticipantLimit(t *testing.T) {
	_, ts := newTestServer(t, Config{MaxParticipants: 1})
	first := dial(t, ts, "r1", "alice")
	readType(t, first, "welcome")

	second := dial(t, ts, "r1", "bob")
	errMsg := readType(t, second, "error")
	assert.Contains(t, errMsg["error"], "participant limit")
}

func TestDisconnectCascade(t *testing.T) {
	srv, ts := newTestServer(t, Config{})

	alice := dial(t, ts, "r1", "alice")
	aliceWelcome := readType(t, alice, "welcome")
	bob := dial(t, ts, "r1", "bob")
	readType(t, bob, "welcome")
	readType(t, alice, "participantJoined")

	require.NoError(t, bob.Close())

	left := readType(t, alice, "participantLeft")
	assert.NotEqual(t, aliceWelcome["participantId"], left["participantId"])

	require.Eventually(t, func() bool {
		return srv.Stats().Participants == 1
	}, 2*time.Second, 10*time.Millisecond)

	// last one out takes the router with them
	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool {
		return srv.Stats().Rooms == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBinaryFrameIngest(t *testing.T) {
	srv, ts := newTestServer(t, Config{DefaultSampleRate: 16000})
	ing := &fakeIngestor{}
	srv.BindIngestor(ing)

	conn := dial(t, ts, "r1", "alice")
	welcome := readType(t, conn, "welcome")

	payload := audio.EncodePCM16([]float32{0.1, 0.2, 0.3})
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, payload))

	require.Eventually(t, func() bool { return len(ing.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	call := ing.snapshot()[0]
	assert.Equal(t, domain.RoomID("r1"), call.room)
	assert.Equal(t, welcome["participantId"].(string), string(call.pid))
	assert.Equal(t, payload, call.raw)
	assert.Equal(t, 16000, call.sampleRate)
	assert.Equal(t, domain.Language("en"), call.lang)
}

func TestDeliverTranslation(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "r1", "bob")
	welcome := readType(t, conn, "welcome")
	pid := domain.ParticipantID(welcome["participantId"].(string))

	samples := []float32{0.5, -0.5}
	srv.DeliverTranslation("r1", pid, core.TranslatedAudio{
		SenderID:   "alice-id",
		SenderName: "alice",
		Language:   "fr",
		Text:       "bonjour",
		Samples:    samples,
		SampleRate: 24000,
		Latency:    120 * time.Millisecond,
	})

	msg := readType(t, conn, "translatedAudio")
	assert.Equal(t, "alice-id", msg["senderId"])
	assert.Equal(t, "fr", msg["language"])
	assert.Equal(t, "bonjour", msg["text"])
	assert.EqualValues(t, 24000, msg["sampleRate"])
	assert.EqualValues(t, 120, msg["latencyMs"])

	raw, err := base64.StdEncoding.DecodeString(msg["audio"].(string))
	require.NoError(t, err)
	decoded, err := audio.DecodePCM16(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.InDelta(t, 0.5, decoded[0], 0.001)
	assert.InDelta(t, -0.5, decoded[1], 0.001)
}

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"capabilities", `{"type":"getRouterRtpCapabilities"}`, false},
		{"create transport", `{"type":"createWebRtcTransport","direction":"send"}`, false},
		{"set languages", `{"type":"setLanguages","sourceLanguage":"en","targetLanguages":["fr"]}`, false},
		{"unknown type", `{"type":"teleport"}`, true},
		{"not json", `{`, true},
		{"bad payload shape", `{"type":"createWebRtcTransport","direction":7}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidMessage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJoinLimiter(t *testing.T) {
	l := NewJoinLimiter(2, time.Minute)
	assert.True(t, l.Allow("tok"))
	assert.True(t, l.Allow("tok"))
	assert.False(t, l.Allow("tok"))
	assert.True(t, l.Allow("other"))
}
