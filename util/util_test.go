package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveInputParams(t *testing.T) {
	data := map[string]any{
		"answers": map[string]any{
			"name": map[string]any{
				"text":   "Анна Иванова",
				"fields": map[string]any{"first_name": "Анна"},
			},
		},
	}
	params := map[string]any{
		"greeting": "Привет, {$.answers.name.fields.first_name}!",
		"missing":  "[{$.answers.photo.text}]",
		"nested":   map[string]any{"full": "{$.answers.name.text}"},
		"list":     []any{"{$.answers.name.fields.first_name}", 3},
		"plain":    7,
	}
	out := ResolveInputParams(data, params)
	require.Equal(t, "Привет, Анна!", out["greeting"])
	require.Equal(t, "[]", out["missing"])
	require.Equal(t, map[string]any{"full": "Анна Иванова"}, out["nested"])
	require.Equal(t, []any{"Анна", 3}, out["list"])
	require.Equal(t, 7, out["plain"])
}

func TestLookup(t *testing.T) {
	data := map[string]any{"media": map[string]any{"reusable": true}}
	v, err := Lookup(data, "{$.media.reusable}")
	require.NoError(t, err)
	require.Equal(t, true, v)
}

func TestWrap(t *testing.T) {
	require.Equal(t, 4, Wrap(-1, 5))
	require.Equal(t, 0, Wrap(5, 5))
	require.Equal(t, 2, Wrap(2, 5))
	require.Equal(t, 0, Wrap(3, 0))
}

func TestJsonEncDec(t *testing.T) {
	type payload struct {
		Name string
	}
	encdec := NewJsonEncoderDecoder[payload]()
	data, err := encdec.Encode(payload{Name: "x"})
	require.NoError(t, err)
	res, err := encdec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "x", res.Name)

	_, err = encdec.Decode([]byte("{"))
	require.Error(t, err)
}

func TestWorkerRunsTasksInOrder(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var seen []int
	done := make(chan struct{})
	w := NewWorker("test", &wg, func(task Task) error {
		mu.Lock()
		seen = append(seen, task.(int))
		if len(seen) == 3 {
			close(done)
		}
		mu.Unlock()
		return nil
	}, 3)
	w.Start()
	for i := 1; i <= 3; i++ {
		w.Sender() <- i
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not drain tasks")
	}
	w.Stop()
	wg.Wait()
	require.Equal(t, []int{1, 2, 3}, seen)
}

func TestTickWorker(t *testing.T) {
	var wg sync.WaitGroup
	ticks := make(chan struct{}, 10)
	tw := NewTickWorker("tick", 10*time.Millisecond, func() { ticks <- struct{}{} }, &wg)
	tw.Start()
	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick")
	}
	tw.Stop()
	wg.Wait()
}

func TestEncoderDecoderByName(t *testing.T) {
	type record struct {
		Step string `json:"step"`
	}
	codec, err := NewEncoderDecoder[record]("")
	require.NoError(t, err)
	data, err := codec.Encode(record{Step: "name"})
	require.NoError(t, err)
	out, err := codec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "name", out.Step)

	_, err = codec.Decode([]byte("  "))
	require.ErrorIs(t, err, ErrEmptyPayload)

	_, err = NewEncoderDecoder[record]("PROTO")
	require.Error(t, err)
}
