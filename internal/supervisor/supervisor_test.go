package supervisor

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/404minds/telematics-gateway/internal/crcutil"
	"github.com/404minds/telematics-gateway/internal/logging"
	"github.com/404minds/telematics-gateway/internal/registry"
	"github.com/404minds/telematics-gateway/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginHex = "000F333536333037303433373231353739"

const codec8ThreeRecordFrame = "00000000000000A608030000013FEB40E0B2000F0EC760209A6B000062000006000000170A010002000300B300B4004501F00150041503C80008B50012B6000A423024180000CD0386CE0001431057440000044600000112C700000000F10000601A4800000000014E00000000000000000000013F14A1D1CE000F0EB790209A778000AB010C0500000000000000000000013F1498A63A000F0EB790209A77800095010C0400000000000000000300003390"

func newTestSupervisor(t *testing.T, sinkURL string) (*Supervisor, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	disp := sink.New(sinkURL, "secret", logging.Nop())
	disp.Start()
	t.Cleanup(func() { disp.Stop(time.Second) })

	sup, err := New("127.0.0.1:0", reg, disp, logging.Nop())
	require.NoError(t, err)
	go sup.Serve()
	t.Cleanup(func() { sup.Shutdown(time.Second) })
	return sup, reg
}

func TestLoginAcceptedEndToEnd(t *testing.T) {
	sup, reg := newTestSupervisor(t, "http://127.0.0.1:1")

	conn, err := net.Dial("tcp", sup.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	loginBytes, _ := hex.DecodeString(loginHex)
	_, err = conn.Write(loginBytes)
	require.NoError(t, err)

	ack := make([]byte, 1)
	_, err = io.ReadFull(conn, ack)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), ack[0])

	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, 5*time.Millisecond)
	snaps := reg.Snapshot()
	assert.Equal(t, "356307043721579", snaps[0].IMEI)
}

func TestLoginRejectedWrongLengthClosesConnection(t *testing.T) {
	sup, reg := newTestSupervisor(t, "http://127.0.0.1:1")

	conn, err := net.Dial("tcp", sup.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	bad, _ := hex.DecodeString("000E3335363330373034323434313031")
	_, err = conn.Write(bad)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, _ := conn.Read(buf)
	assert.Equal(t, 0, n, "no ack expected on a rejected login")

	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCodec8FrameAcksRecordCountAndReachesSink(t *testing.T) {
	var received struct {
		IMEI    string `json:"imei"`
		Records []struct {
			Timestamp uint64 `json:"timestamp"`
		} `json:"records"`
	}
	done := make(chan struct{}, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"accepted": len(received.Records), "total": len(received.Records)})
		done <- struct{}{}
	}))
	defer ts.Close()

	sup, _ := newTestSupervisor(t, ts.URL)

	conn, err := net.Dial("tcp", sup.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	loginBytes, _ := hex.DecodeString(loginHex)
	_, err = conn.Write(loginBytes)
	require.NoError(t, err)
	ack := make([]byte, 1)
	_, err = io.ReadFull(conn, ack)
	require.NoError(t, err)

	avlBytes, _ := hex.DecodeString(codec8ThreeRecordFrame)
	_, err = conn.Write(avlBytes)
	require.NoError(t, err)

	recordAck := make([]byte, 4)
	_, err = io.ReadFull(conn, recordAck)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(recordAck))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink never received the batch")
	}
	assert.Equal(t, "356307043721579", received.IMEI)
	assert.Len(t, received.Records, 3)
}

func TestCrcMismatchClosesConnectionWithoutAck(t *testing.T) {
	sup, reg := newTestSupervisor(t, "http://127.0.0.1:1")

	conn, err := net.Dial("tcp", sup.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	loginBytes, _ := hex.DecodeString(loginHex)
	_, err = conn.Write(loginBytes)
	require.NoError(t, err)
	ack := make([]byte, 1)
	_, err = io.ReadFull(conn, ack)
	require.NoError(t, err)

	avlBytes, _ := hex.DecodeString(codec8ThreeRecordFrame)
	avlBytes[len(avlBytes)-1] ^= 0xFF
	_, err = conn.Write(avlBytes)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, _ := conn.Read(buf)
	assert.Equal(t, 0, n)

	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestAvlBeforeLoginClosesConnection(t *testing.T) {
	sup, reg := newTestSupervisor(t, "http://127.0.0.1:1")

	conn, err := net.Dial("tcp", sup.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	avlBytes, _ := hex.DecodeString(codec8ThreeRecordFrame)
	_, err = conn.Write(avlBytes)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, _ := conn.Read(buf)
	assert.Equal(t, 0, n)

	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestFragmentedLoginArrivalStillAuthenticates(t *testing.T) {
	sup, reg := newTestSupervisor(t, "http://127.0.0.1:1")

	conn, err := net.Dial("tcp", sup.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	loginBytes, _ := hex.DecodeString(loginHex)
	for _, b := range loginBytes {
		_, err = conn.Write([]byte{b})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	ack := make([]byte, 1)
	_, err = io.ReadFull(conn, ack)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), ack[0])

	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCrcUtilSanity(t *testing.T) {
	// Smoke test that the CRC helper the decoder depends on agrees with a
	// hand-computed value for an empty data field.
	assert.Equal(t, uint16(0), crcutil.IBM(nil))
}
