package table

import (
	"errors"
	"sync"
	"testing"

	"github.com/getmockd/serialmock/pkg/function"
	"github.com/getmockd/serialmock/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, line string) *template.Template {
	t.Helper()
	tmpl, err := template.Parse(line)
	require.NoError(t, err, "parse %q", line)
	return tmpl
}

func TestLookup_SumScenario(t *testing.T) {
	tbl := New()
	require.True(t, tbl.TryAdd(
		mustParse(t, "0x10 0x58 $1 0x5B 0x16"),
		mustParse(t, "0x68 0x0D 0x0D 0x68 0x08 $1 0x00 0x04 0xA0 0x00 0xB1 0x00 0xA0 0x00 0x10 0x20 0x01 @sum[3..] 0x16"),
	))

	got, ok := tbl.Lookup([]byte{0x10, 0x58, 0xFC, 0x5B, 0x16})
	require.True(t, ok)
	assert.Equal(t, []byte{0x68, 0x0D, 0x0D, 0x68, 0x08, 0xFC, 0x00, 0x04, 0xA0, 0x00, 0xB1, 0x00, 0xA0, 0x00, 0x10, 0x20, 0x01, 0x92, 0x16}, got)
}

func TestLookup_CRC16Scenario(t *testing.T) {
	tbl := New()
	require.True(t, tbl.TryAdd(
		mustParse(t, "$6 0x08 0x43 $1 $2 $5 $3 $4 @crc16"),
		mustParse(t, "$6 0x0A 0x63 $1 $2 0x03 0xC2 0x35 $3 $4 @crc16"),
	))

	got, ok := tbl.Lookup([]byte{0x00, 0x08, 0x43, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC7, 0x38})
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x0A, 0x63, 0x00, 0x00, 0x03, 0xC2, 0x35, 0x00, 0x00, 0x21, 0x2C}, got)
}

func TestLookup_RandScenario(t *testing.T) {
	tbl := New()
	require.True(t, tbl.TryAdd(
		mustParse(t, "0x10 0x58 $1 0x5B 0x16"),
		mustParse(t, "0x68 0x0D 0x0D 0x68 0x08 $1 0x00 0x04 0xA0 0x00 0xB1 0x00 0xA0 0x00 @rand[40..130] @rand[20..30] 0x01 @sum[3..] 0x16"),
	))

	in := []byte{0x10, 0x58, 0xFC, 0x5B, 0x16}
	for i := 0; i < 1000; i++ {
		got, ok := tbl.Lookup(in)
		require.True(t, ok)
		require.Len(t, got, 19)
		require.True(t, got[14] >= 40 && got[14] <= 130, "trial %d: byte 14 = %d", i, got[14])
		require.True(t, got[15] >= 20 && got[15] <= 30, "trial %d: byte 15 = %d", i, got[15])
		require.Equal(t, function.Sum8(got[3:17]), got[17], "sum covers the random bytes")
	}
}

func TestLookup_SeededRandIsReproducible(t *testing.T) {
	ask := mustParse(t, "0x01 $1")
	answer := mustParse(t, "$1 @rand @rand @rand @rand")

	run := func() []byte {
		tbl := New()
		tbl.SetRand(function.NewRand(99))
		require.True(t, tbl.TryAdd(ask, answer))
		got, ok := tbl.Lookup([]byte{0x01, 0x42})
		require.True(t, ok)
		return got
	}
	assert.Equal(t, run(), run())

	tbl := New()
	require.True(t, tbl.TryAdd(ask, answer))
	a, _ := tbl.LookupWith([]byte{0x01, 0x42}, function.NewRand(5))
	b, _ := tbl.LookupWith([]byte{0x01, 0x42}, function.NewRand(5))
	assert.Equal(t, a, b)
	assert.Equal(t, byte(0x42), a[0])
}

func TestLookup_UnknownAsk(t *testing.T) {
	tbl := New()
	require.True(t, tbl.TryAdd(mustParse(t, "0x10 0x58 $1"), mustParse(t, "0x01")))

	for _, in := range [][]byte{
		{0x10, 0x59, 0x00},
		{0x10, 0x58},
		{0x10, 0x58, 0x00, 0x00},
		{},
		nil,
	} {
		got, ok := tbl.Lookup(in)
		assert.False(t, ok, "input %x", in)
		assert.Nil(t, got)
	}
}

func TestLookup_FirstMatchWins(t *testing.T) {
	tbl := New()
	require.True(t, tbl.TryAdd(mustParse(t, "0x01 $1"), mustParse(t, "0xAA")))
	require.True(t, tbl.TryAdd(mustParse(t, "0x02 0x02"), mustParse(t, "0xBB")))

	got, ok := tbl.Lookup([]byte{0x02, 0x02})
	require.True(t, ok)
	assert.Equal(t, []byte{0xBB}, got)

	got, ok = tbl.Lookup([]byte{0x01, 0x02})
	require.True(t, ok)
	assert.Equal(t, []byte{0xAA}, got)
}

func TestTryAdd_RejectsEqualAsk(t *testing.T) {
	tbl := New()
	assert.True(t, tbl.TryAdd(mustParse(t, "0x01 0x02"), mustParse(t, "0xAA")))
	assert.False(t, tbl.TryAdd(mustParse(t, "0x01 0x02"), mustParse(t, "0xBB")))
	assert.False(t, tbl.TryAdd(mustParse(t, "0x01 $9"), mustParse(t, "0xBB")), "wildcard ask equals stored ask")
	assert.True(t, tbl.TryAdd(mustParse(t, "0x01 0x02 0x03"), mustParse(t, "0xCC")))
	assert.False(t, tbl.TryAdd(nil, mustParse(t, "0xCC")))
	assert.Equal(t, 2, tbl.Len())
}

func TestClear(t *testing.T) {
	tbl := New()
	require.True(t, tbl.TryAdd(mustParse(t, "0x01"), mustParse(t, "0x02")))
	tbl.Clear()
	assert.Equal(t, 0, tbl.Len())
	_, ok := tbl.Lookup([]byte{0x01})
	assert.False(t, ok)
	assert.True(t, tbl.TryAdd(mustParse(t, "0x01"), mustParse(t, "0x03")))
}

func TestReplace(t *testing.T) {
	tbl := New()
	require.True(t, tbl.TryAdd(mustParse(t, "0x01"), mustParse(t, "0x02")))

	err := tbl.Replace([]Pair{
		{Ask: mustParse(t, "0x05 $1"), Answer: mustParse(t, "$1")},
		{Ask: mustParse(t, "0x05 0x06"), Answer: mustParse(t, "0x00")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateAsk))
	assert.Equal(t, 1, tbl.Len(), "failed replace keeps the old content")

	err = tbl.Replace([]Pair{{Ask: mustParse(t, "0x05"), Answer: nil}})
	assert.ErrorIs(t, err, ErrNilTemplate)

	require.NoError(t, tbl.Replace([]Pair{
		{Ask: mustParse(t, "0x05 $1"), Answer: mustParse(t, "$1 $1")},
	}))
	assert.Equal(t, 1, tbl.Len())
	got, ok := tbl.Lookup([]byte{0x05, 0x07})
	require.True(t, ok)
	assert.Equal(t, []byte{0x07, 0x07}, got)
	_, ok = tbl.Lookup([]byte{0x01})
	assert.False(t, ok)
}

func TestPairs_ReturnsCopy(t *testing.T) {
	tbl := New()
	require.True(t, tbl.TryAdd(mustParse(t, "0x01"), mustParse(t, "0x02")))
	pairs := tbl.Pairs()
	pairs[0] = Pair{}
	assert.NotNil(t, tbl.Pairs()[0].Ask)
}

func TestNearMisses(t *testing.T) {
	tbl := New()
	require.True(t, tbl.TryAdd(mustParse(t, "0x10 0x58 $1 0x5B"), mustParse(t, "0x01")))
	require.True(t, tbl.TryAdd(mustParse(t, "0x20 0x00 0x00 0x00"), mustParse(t, "0x01")))

	misses := tbl.NearMisses([]byte{0x10, 0x58, 0x00, 0x5C}, 3)
	require.NotEmpty(t, misses)
	assert.Equal(t, 0, misses[0].Index)
	assert.Contains(t, misses[0].Reason, "byte 3 expected 0x5B, got 0x5C")
}

// Reloads swap between two tables that both answer the probe frame. A lookup
// that observed a half-cleared or half-filled table would miss.
func TestConcurrentReplaceAndLookup(t *testing.T) {
	probe := []byte{0x01, 0x02, 0x03}

	oldPairs := []Pair{
		{Ask: mustParse(t, "0x09 0x09 0x09"), Answer: mustParse(t, "0x00")},
		{Ask: mustParse(t, "0x01 $1 0x03"), Answer: mustParse(t, "0xAA $1")},
	}
	newPairs := []Pair{
		{Ask: mustParse(t, "0x01 0x02 $2"), Answer: mustParse(t, "0xBB $2")},
		{Ask: mustParse(t, "0x08 0x08 0x08"), Answer: mustParse(t, "0x00")},
	}

	tbl := New()
	require.NoError(t, tbl.Replace(oldPairs))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			next := oldPairs
			if i%2 == 0 {
				next = newPairs
			}
			if err := tbl.Replace(next); err != nil {
				t.Errorf("Replace() error = %v", err)
				return
			}
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, ok := tbl.Lookup(probe)
				if !ok {
					t.Error("lookup missed during reload")
					return
				}
				switch {
				case got[0] == 0xAA && got[1] == 0x02:
				case got[0] == 0xBB && got[1] == 0x03:
				default:
					t.Errorf("unexpected answer %x", got)
					return
				}
			}
		}()
	}

	wg.Wait()
}
