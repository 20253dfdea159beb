package split

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"neural/nn"
)

// Infer runs one split forward pass for x. The server behind p evaluates the
// first layer of net on the encrypted input; the rest of net runs locally on
// the decrypted pre-activations.
func Infer(ctx context.Context, c *Client, p *Protocol, net *nn.Network, x []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ct, err := c.Encrypt(x)
	if err != nil {
		return nil, err
	}
	id, err := p.SendForward(ct)
	if err != nil {
		return nil, err
	}

	out, err := p.ReceiveOutput()
	if err == io.EOF {
		return nil, errors.Wrap(io.ErrUnexpectedEOF, "server closed before answering")
	}
	if err != nil {
		return nil, err
	}
	if out.RequestID != id {
		return nil, errors.Errorf("answer for request %d, want %d", out.RequestID, id)
	}

	z, err := c.Decrypt(out.Ciphertexts)
	if err != nil {
		return nil, err
	}
	return net.ForwardFrom(z)
}
