package table

import (
	"fmt"
	"testing"

	"github.com/getmockd/serialmock/pkg/function"
	"github.com/getmockd/serialmock/pkg/template"
)

func benchTable(b *testing.B, n int) *Table {
	b.Helper()
	tbl := New()
	for i := 0; i < n; i++ {
		ask, err := template.Parse(fmt.Sprintf("0x10 0x%02X $1 0x5B 0x16", i))
		if err != nil {
			b.Fatal(err)
		}
		answer, err := template.Parse("0x68 0x0D 0x0D 0x68 0x08 $1 0x00 0x04 0xA0 0x00 0xB1 0x00 0xA0 0x00 @rand[40..130] 0x20 0x01 @sum[3..] 0x16")
		if err != nil {
			b.Fatal(err)
		}
		if !tbl.TryAdd(ask, answer) {
			b.Fatalf("pair %d rejected", i)
		}
	}
	tbl.SetRand(function.NewRand(1))
	return tbl
}

func BenchmarkLookup(b *testing.B) {
	for _, n := range []int{1, 16, 64} {
		b.Run(fmt.Sprintf("pairs=%d/last", n), func(b *testing.B) {
			tbl := benchTable(b, n)
			frame := []byte{0x10, byte(n - 1), 0xFC, 0x5B, 0x16}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, ok := tbl.Lookup(frame); !ok {
					b.Fatal("miss")
				}
			}
		})
	}
}

func BenchmarkLookup_Miss(b *testing.B) {
	tbl := benchTable(b, 64)
	frame := []byte{0x11, 0x00, 0xFC, 0x5B, 0x16}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := tbl.Lookup(frame); ok {
			b.Fatal("unexpected hit")
		}
	}
}

func BenchmarkLookup_Parallel(b *testing.B) {
	tbl := benchTable(b, 16)
	frame := []byte{0x10, 0x0F, 0xFC, 0x5B, 0x16}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, ok := tbl.Lookup(frame); !ok {
				b.Error("miss")
				return
			}
		}
	})
}
