package channelmerge

import (
	"sort"
	"testing"
)

func TestMergeAllValues(t *testing.T) {
	a := make(chan int, 3)
	b := make(chan int, 3)
	c := make(chan int, 3)

	for i := 0; i < 3; i++ {
		a <- i
		b <- 10 + i
		c <- 20 + i
	}
	close(a)
	close(b)
	close(c)

	var out []int
	for v := range Merge[int](a, b, c) {
		out = append(out, v)
	}

	if len(out) != 9 {
		t.Fatalf("expected 9 values, got %d", len(out))
	}

	sort.Ints(out)
	expected := []int{0, 1, 2, 10, 11, 12, 20, 21, 22}
	for i, e := range expected {
		if out[i] != e {
			t.Fatalf("unexpected value %d at %d", out[i], i)
		}
	}
}

func TestMergeNoInputs(t *testing.T) {
	if _, ok := <-Merge[int](); ok {
		t.Fatalf("expected an immediately closed channel")
	}
}
