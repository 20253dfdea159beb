package split

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
)

func TestProtocolRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	ctBytes := []byte("test ciphertext data")
	id, err := writer.SendForward(ctBytes)
	if err != nil {
		t.Fatalf("SendForward failed: %v", err)
	}
	if id != 1 {
		t.Errorf("request id = %d, want 1", id)
	}

	reader := NewProtocol(&buf, nil)
	payload, err := reader.ReceiveForward()
	if err != nil {
		t.Fatalf("ReceiveForward failed: %v", err)
	}
	if payload.RequestID != id {
		t.Errorf("RequestID = %d, want %d", payload.RequestID, id)
	}
	if !bytes.Equal(payload.Ciphertext, ctBytes) {
		t.Errorf("Ciphertext mismatch")
	}
}

func TestProtocolOutput(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	cts := [][]byte{[]byte("neuron 0"), []byte("neuron 1"), []byte("neuron 2")}
	if err := writer.SendOutput(7, cts); err != nil {
		t.Fatalf("SendOutput failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	payload, err := reader.ReceiveOutput()
	if err != nil {
		t.Fatalf("ReceiveOutput failed: %v", err)
	}
	if payload.RequestID != 7 {
		t.Errorf("RequestID = %d, want 7", payload.RequestID)
	}
	got := payload.Ciphertexts
	if len(got) != len(cts) {
		t.Fatalf("got %d ciphertexts, want %d", len(got), len(cts))
	}
	for i := range cts {
		if !bytes.Equal(got[i], cts[i]) {
			t.Errorf("ciphertext %d mismatch", i)
		}
	}
}

func TestProtocolRequestIDsIncrease(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)
	for want := 1; want <= 3; want++ {
		id, err := writer.SendForward([]byte("ct"))
		if err != nil {
			t.Fatalf("SendForward failed: %v", err)
		}
		if id != want {
			t.Errorf("request id = %d, want %d", id, want)
		}
	}
}

func TestProtocolDone(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	if err := writer.SendDone(); err != nil {
		t.Fatalf("SendDone failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err := reader.ReceiveForward()
	if err != io.EOF {
		t.Errorf("Expected io.EOF after done, got %v", err)
	}
}

func TestProtocolError(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	if err := writer.SendError(io.ErrUnexpectedEOF); err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err := reader.ReceiveOutput()
	if !errors.Is(err, ErrRemote) {
		t.Errorf("Expected remote error after SendError, got %v", err)
	}
}

func TestProtocolUnexpectedType(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	if _, err := writer.SendForward([]byte("x")); err != nil {
		t.Fatalf("SendForward failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err := reader.ReceiveOutput()
	if err == nil || err == io.EOF {
		t.Errorf("Expected type error, got %v", err)
	}
}

func TestMessageTypes(t *testing.T) {
	if MsgForwardInput != 0 {
		t.Errorf("MsgForwardInput = %d, want 0", MsgForwardInput)
	}
	if MsgForwardOutput != 1 {
		t.Errorf("MsgForwardOutput = %d, want 1", MsgForwardOutput)
	}
	if MsgDone != 2 {
		t.Errorf("MsgDone = %d, want 2", MsgDone)
	}
	if MsgError != 3 {
		t.Errorf("MsgError = %d, want 3", MsgError)
	}
	if MsgDone.String() != "done" {
		t.Errorf("MsgDone.String() = %q", MsgDone.String())
	}
}
