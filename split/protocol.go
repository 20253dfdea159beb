package split

import (
	"encoding/gob"
	"io"

	"github.com/pkg/errors"
)

func init() {
	gob.Register(ForwardPayload{})
	gob.Register(OutputPayload{})
}

// MessageType defines message types for the split inference protocol
type MessageType int

const (
	MsgForwardInput MessageType = iota
	MsgForwardOutput
	MsgDone
	MsgError
)

func (t MessageType) String() string {
	switch t {
	case MsgForwardInput:
		return "forward input"
	case MsgForwardOutput:
		return "forward output"
	case MsgDone:
		return "done"
	case MsgError:
		return "error"
	}
	return "unknown"
}

// ErrRemote wraps a failure reported by the other side.
var ErrRemote = errors.New("remote error")

type Message struct {
	Type    MessageType
	Payload interface{}
}

// ForwardPayload carries the serialized encrypted input.
type ForwardPayload struct {
	RequestID  int
	Ciphertext []byte
}

// OutputPayload carries one serialized ciphertext per first-layer neuron.
type OutputPayload struct {
	RequestID   int
	Ciphertexts [][]byte
}

// Protocol handles split inference communication over any stream pair.
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
	sent    int
}

func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	return &Protocol{
		encoder: gob.NewEncoder(w),
		decoder: gob.NewDecoder(r),
	}
}

func (p *Protocol) Send(msg *Message) error {
	return errors.Wrapf(p.encoder.Encode(msg), "sending %s", msg.Type)
}

func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, errors.Wrap(err, "receiving message")
	}
	return &msg, nil
}

// SendForward sends an encrypted input and returns its request id.
func (p *Protocol) SendForward(ct []byte) (int, error) {
	p.sent++
	return p.sent, p.Send(&Message{
		Type:    MsgForwardInput,
		Payload: ForwardPayload{RequestID: p.sent, Ciphertext: ct},
	})
}

// SendOutput answers request id.
func (p *Protocol) SendOutput(id int, cts [][]byte) error {
	return p.Send(&Message{
		Type:    MsgForwardOutput,
		Payload: OutputPayload{RequestID: id, Ciphertexts: cts},
	})
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{Type: MsgError, Payload: err.Error()})
}

// receive reads the next message and checks it has type want. Done and end
// of stream come back as io.EOF.
func (p *Protocol) receive(want MessageType) (*Message, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case want:
		return msg, nil
	case MsgDone:
		return nil, io.EOF
	case MsgError:
		return nil, errors.Wrapf(ErrRemote, "%v", msg.Payload)
	}
	return nil, errors.Errorf("expected %s message, got %s", want, msg.Type)
}

// ReceiveForward returns the next encrypted input and its request id.
func (p *Protocol) ReceiveForward() (*ForwardPayload, error) {
	msg, err := p.receive(MsgForwardInput)
	if err != nil {
		return nil, err
	}
	payload, ok := msg.Payload.(ForwardPayload)
	if !ok {
		return nil, errors.New("invalid forward payload type")
	}
	return &payload, nil
}

// ReceiveOutput returns the next answer with the id of the request it
// belongs to.
func (p *Protocol) ReceiveOutput() (*OutputPayload, error) {
	msg, err := p.receive(MsgForwardOutput)
	if err != nil {
		return nil, err
	}
	payload, ok := msg.Payload.(OutputPayload)
	if !ok {
		return nil, errors.New("invalid output payload type")
	}
	return &payload, nil
}
