package split

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"

	"neural/nn"
)

// Server evaluates one layer on encrypted inputs. It handles one request at a
// time.
type Server struct {
	params hefloat.Parameters
	layer  *nn.Layer

	encoder   *hefloat.Encoder
	evaluator *hefloat.Evaluator
}

func NewServer(params hefloat.Parameters, evk rlwe.EvaluationKeySet, layer *nn.Layer) (*Server, error) {
	if err := checkSlots(params, layer.InputSize()); err != nil {
		return nil, err
	}
	return &Server{
		params:    params,
		layer:     layer,
		encoder:   hefloat.NewEncoder(params),
		evaluator: hefloat.NewEvaluator(params, evk),
	}, nil
}

// Evaluate returns, for every neuron i, a ciphertext whose first slot holds
// W_i·x + b_i.
func (s *Server) Evaluate(b []byte) ([][]byte, error) {
	in := new(rlwe.Ciphertext)
	if err := in.UnmarshalBinary(b); err != nil {
		return nil, errors.Wrap(err, "reading input ciphertext")
	}

	weights := s.layer.Weights()
	biases := s.layer.Biases()
	row := make([]float64, s.params.MaxSlots())
	pt := hefloat.NewPlaintext(s.params, in.Level())
	ks := rotations(s.layer.InputSize())

	out := make([][]byte, s.layer.Size())
	for i := range out {
		copy(row, weights.RawRowView(i))
		if err := s.encoder.Encode(row, pt); err != nil {
			return nil, errors.Wrapf(err, "encoding weights of neuron %d", i)
		}

		ct, err := s.evaluator.MulNew(in, pt)
		if err != nil {
			return nil, errors.Wrapf(err, "weighting neuron %d", i)
		}
		if err := s.evaluator.Rescale(ct, ct); err != nil {
			return nil, errors.Wrapf(err, "rescaling neuron %d", i)
		}
		for _, k := range ks {
			rot, err := s.evaluator.RotateNew(ct, k)
			if err != nil {
				return nil, errors.Wrapf(err, "rotating neuron %d by %d", i, k)
			}
			if err := s.evaluator.Add(ct, rot, ct); err != nil {
				return nil, errors.Wrapf(err, "summing neuron %d", i)
			}
		}
		if err := s.evaluator.Add(ct, biases.AtVec(i), ct); err != nil {
			return nil, errors.Wrapf(err, "adding bias of neuron %d", i)
		}

		if out[i], err = ct.MarshalBinary(); err != nil {
			return nil, errors.Wrapf(err, "serializing neuron %d", i)
		}
	}
	return out, nil
}

// Serve answers forward requests on p until the client signals done, the
// stream ends or ctx is cancelled. A failed evaluation is reported to the
// client and ends the loop.
func (s *Server) Serve(ctx context.Context, p *Protocol) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		in, err := p.ReceiveForward()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		out, err := s.Evaluate(in.Ciphertext)
		if err != nil {
			if sendErr := p.SendError(err); sendErr != nil {
				return errors.Wrap(sendErr, "reporting evaluation failure")
			}
			return err
		}
		if err := p.SendOutput(in.RequestID, out); err != nil {
			return err
		}
	}
}

// Connect runs s behind an in-process pipe and returns the client end. stop
// closes both directions and waits for Serve to return; it is safe to defer
// even when the client gives up halfway through a request.
func Connect(ctx context.Context, s *Server) (p *Protocol, stop func() error) {
	toServer, fromClient := io.Pipe()
	toClient, fromServer := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := s.Serve(ctx, NewProtocol(toServer, fromServer))
		fromServer.Close()
		done <- err
	}()

	var once sync.Once
	var err error
	stop = func() error {
		once.Do(func() {
			fromClient.Close()
			toClient.Close()
			err = <-done
		})
		return err
	}
	return NewProtocol(toClient, fromClient), stop
}
