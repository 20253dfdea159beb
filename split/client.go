package split

import (
	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"

	"neural/nn"
)

// Client owns the key material for one input size.
type Client struct {
	params    hefloat.Parameters
	inputSize int

	encoder   *hefloat.Encoder
	encryptor *rlwe.Encryptor
	decryptor *rlwe.Decryptor
	evk       *rlwe.MemEvaluationKeySet
}

// NewClient generates a fresh key pair and the evaluation keys a server
// needs to sum inputSize slots.
func NewClient(params hefloat.Parameters, inputSize int) (*Client, error) {
	if inputSize <= 0 {
		return nil, errors.Errorf("input size %d, want a positive count", inputSize)
	}
	if err := checkSlots(params, inputSize); err != nil {
		return nil, err
	}

	kgen := hefloat.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)

	ks := rotations(inputSize)
	galEls := make([]uint64, len(ks))
	for i, k := range ks {
		galEls[i] = params.GaloisElement(k)
	}

	return &Client{
		params:    params,
		inputSize: inputSize,
		encoder:   hefloat.NewEncoder(params),
		encryptor: hefloat.NewEncryptor(params, pk),
		decryptor: hefloat.NewDecryptor(params, sk),
		evk:       rlwe.NewMemEvaluationKeySet(rlk, kgen.GenGaloisKeysNew(galEls, sk)...),
	}, nil
}

// EvaluationKeys are the public keys handed to the server.
func (c *Client) EvaluationKeys() rlwe.EvaluationKeySet {
	return c.evk
}

func (c *Client) InputSize() int {
	return c.inputSize
}

// Encrypt packs x into the leading slots of one serialized ciphertext.
func (c *Client) Encrypt(x []float64) ([]byte, error) {
	if len(x) != c.inputSize {
		return nil, errors.WithStack(&nn.ShapeMismatchError{Op: "encrypt", Want: c.inputSize, Got: len(x)})
	}

	values := make([]float64, c.params.MaxSlots())
	copy(values, x)
	pt := hefloat.NewPlaintext(c.params, c.params.MaxLevel())
	if err := c.encoder.Encode(values, pt); err != nil {
		return nil, errors.Wrap(err, "encoding input")
	}
	ct, err := c.encryptor.EncryptNew(pt)
	if err != nil {
		return nil, errors.Wrap(err, "encrypting input")
	}
	b, err := ct.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "serializing input")
	}
	return b, nil
}

// Decrypt reads the first slot of every ciphertext.
func (c *Client) Decrypt(cts [][]byte) ([]float64, error) {
	out := make([]float64, len(cts))
	values := make([]complex128, c.params.MaxSlots())
	for i, b := range cts {
		ct := new(rlwe.Ciphertext)
		if err := ct.UnmarshalBinary(b); err != nil {
			return nil, errors.Wrapf(err, "reading ciphertext %d", i)
		}
		if err := c.encoder.Decode(c.decryptor.DecryptNew(ct), values); err != nil {
			return nil, errors.Wrapf(err, "decoding ciphertext %d", i)
		}
		out[i] = real(values[0])
	}
	return out, nil
}
