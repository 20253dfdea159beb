package split

import (
	"context"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
	"gonum.org/v1/gonum/mat"

	"neural/config"
	"neural/nn"
)

// testParameters are small and insecure, good enough for checking numbers.
func testParameters(t *testing.T) hefloat.Parameters {
	t.Helper()
	params, err := Parameters(config.Split{LogN: 10, LogQ: []int{55, 40}, LogP: []int{61}, LogDefaultScale: 40})
	require.NoError(t, err)
	return params
}

func testNetwork(t *testing.T, schedule ...int) *nn.Network {
	t.Helper()
	net, err := nn.New(schedule, nn.Sigmoid, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b := net.Layers()[0].Biases()
	for i := 0; i < b.Len(); i++ {
		b.SetVec(i, 0.25*float64(i+1))
	}
	return net
}

func testInput(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i%7) / 7
	}
	return x
}

func TestParameters(t *testing.T) {
	params := testParameters(t)
	assert.Equal(t, 512, params.MaxSlots())
	assert.Equal(t, 1, params.MaxLevel())

	_, err := Parameters(config.Split{LogN: 10, LogQ: []int{55}, LogP: []int{61}, LogDefaultScale: 40})
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestRotations(t *testing.T) {
	assert.Empty(t, rotations(1))
	assert.Equal(t, []int{1, 2, 4}, rotations(5))
	assert.Equal(t, []int{1, 2, 4, 8}, rotations(16))
	assert.Equal(t, 1024, span(784))
}

func TestEvaluateMatchesPlaintext(t *testing.T) {
	params := testParameters(t)
	net := testNetwork(t, 12, 3, 4)
	layer := net.Layers()[0]
	x := testInput(12)

	client, err := NewClient(params, 12)
	require.NoError(t, err)
	server, err := NewServer(params, client.EvaluationKeys(), layer)
	require.NoError(t, err)

	ct, err := client.Encrypt(x)
	require.NoError(t, err)
	cts, err := server.Evaluate(ct)
	require.NoError(t, err)
	require.Len(t, cts, 3)

	z, err := client.Decrypt(cts)
	require.NoError(t, err)

	want := mat.NewVecDense(3, nil)
	want.MulVec(layer.Weights(), mat.NewVecDense(12, x))
	want.AddVec(want, layer.Biases())
	for i := range z {
		assert.InDelta(t, want.AtVec(i), z[i], 1e-3, "neuron %d", i)
	}
}

func TestInferMatchesForward(t *testing.T) {
	params := testParameters(t)
	net := testNetwork(t, 16, 4, 10)

	client, err := NewClient(params, 16)
	require.NoError(t, err)
	server, err := NewServer(params, client.EvaluationKeys(), net.Layers()[0])
	require.NoError(t, err)

	p, stop := Connect(context.Background(), server)

	for k := 0; k < 2; k++ {
		x := testInput(16)
		x[k] = 1
		want, err := net.Forward(x)
		require.NoError(t, err)

		got, err := Infer(context.Background(), client, p, net, x)
		require.NoError(t, err)
		require.Len(t, got, 10)
		for i := range got {
			assert.InDelta(t, want[i], got[i], 1e-3)
		}
		assert.Equal(t, nn.Argmax(want), nn.Argmax(got))
	}

	require.NoError(t, p.SendDone())
	require.NoError(t, stop())
}

func TestServeEchoesRequestID(t *testing.T) {
	params := testParameters(t)
	net := testNetwork(t, 8, 2, 10)
	client, err := NewClient(params, 8)
	require.NoError(t, err)
	server, err := NewServer(params, client.EvaluationKeys(), net.Layers()[0])
	require.NoError(t, err)

	p, stop := Connect(context.Background(), server)
	defer stop()

	ct, err := client.Encrypt(testInput(8))
	require.NoError(t, err)
	for _, want := range []int{1, 2, 42} {
		// skip ahead so the server cannot match by counting on its own
		p.sent = want - 1
		id, err := p.SendForward(ct)
		require.NoError(t, err)
		require.Equal(t, want, id)

		out, err := p.ReceiveOutput()
		require.NoError(t, err)
		assert.Equal(t, want, out.RequestID)
		assert.Len(t, out.Ciphertexts, 2)
	}
}

func TestConnectStopUnblocksServer(t *testing.T) {
	params := testParameters(t)
	net := testNetwork(t, 8, 2, 10)
	client, err := NewClient(params, 8)
	require.NoError(t, err)
	server, err := NewServer(params, client.EvaluationKeys(), net.Layers()[0])
	require.NoError(t, err)

	// client leaves without a request or a done message
	_, stop := Connect(context.Background(), server)
	require.NoError(t, stop())
	require.NoError(t, stop())

	// client leaves while the server is still writing its answer
	p, stop := Connect(context.Background(), server)
	ct, err := client.Encrypt(testInput(8))
	require.NoError(t, err)
	_, err = p.SendForward(ct)
	require.NoError(t, err)

	stopped := make(chan error, 1)
	go func() { stopped <- stop() }()
	select {
	case err := <-stopped:
		assert.True(t, err == nil || errors.Is(err, io.ErrClosedPipe), "got %v", err)
	case <-time.After(time.Minute):
		t.Fatal("server still blocked after stop")
	}
}

func TestInferRejectsWrongLength(t *testing.T) {
	params := testParameters(t)
	net := testNetwork(t, 8, 2, 10)
	client, err := NewClient(params, 8)
	require.NoError(t, err)

	_, err = Infer(context.Background(), client, NewProtocol(nil, io.Discard), net, make([]float64, 9))
	assert.True(t, errors.Is(err, nn.ErrShapeMismatch))

	var shape *nn.ShapeMismatchError
	require.True(t, errors.As(err, &shape))
	assert.Equal(t, 8, shape.Want)
	assert.Equal(t, 9, shape.Got)
}

func TestInferHonorsContext(t *testing.T) {
	params := testParameters(t)
	net := testNetwork(t, 8, 2, 10)
	client, err := NewClient(params, 8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Infer(ctx, client, NewProtocol(nil, io.Discard), net, testInput(8))
	assert.True(t, errors.Is(err, context.Canceled))

	server, err := NewServer(params, client.EvaluationKeys(), net.Layers()[0])
	require.NoError(t, err)
	assert.True(t, errors.Is(server.Serve(ctx, NewProtocol(nil, io.Discard)), context.Canceled))
}

func TestInputTooLongForSlots(t *testing.T) {
	params := testParameters(t)

	_, err := NewClient(params, 600)
	assert.True(t, errors.Is(err, nn.ErrShapeMismatch))

	net := testNetwork(t, 600, 2, 10)
	_, err = NewServer(params, nil, net.Layers()[0])
	assert.True(t, errors.Is(err, nn.ErrShapeMismatch))
}

func TestEstimateLayer(t *testing.T) {
	params := testParameters(t)
	e := EstimateLayer(params, 12, 3)
	assert.Equal(t, 3, e.Multiplications)
	assert.Equal(t, 12, e.Rotations)
	assert.Equal(t, 2*1024*2*8, e.RequestBytes)
	assert.Equal(t, 3*2*1024*8, e.ResponseBytes)
	assert.Equal(t, time.Second, Estimate{RequestBytes: 1e6}.NetworkTime(1))
	assert.Zero(t, Estimate{RequestBytes: 1e6}.NetworkTime(0))
	assert.Zero(t, Estimate{RequestBytes: 1e6}.NetworkTime(-2))

	client, err := NewClient(params, 12)
	require.NoError(t, err)
	server, err := NewServer(params, client.EvaluationKeys(), testNetwork(t, 12, 3, 4).Layers()[0])
	require.NoError(t, err)

	ct, err := client.Encrypt(testInput(12))
	require.NoError(t, err)
	assert.InEpsilon(t, e.RequestBytes, len(ct), 0.05)

	cts, err := server.Evaluate(ct)
	require.NoError(t, err)
	total := 0
	for _, c := range cts {
		total += len(c)
	}
	assert.InEpsilon(t, e.ResponseBytes, total, 0.05)
}
