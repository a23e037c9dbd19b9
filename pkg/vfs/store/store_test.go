package store

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/marmos91/memvfs/pkg/vfs/verrors"
)

func TestWriteReadRoundTrip(t *testing.T) {
	s := New(8, nil)
	n, err := s.Write(0, []byte("hello world"))
	if err != nil || n != 11 {
		t.Fatalf("Write() = %d, %v, want 11, nil", n, err)
	}
	if s.Size() != 11 {
		t.Fatalf("Size() = %d, want 11", s.Size())
	}

	got := make([]byte, 11)
	n, err = s.Read(0, got)
	if err != nil || n != 11 {
		t.Fatalf("Read() = %d, %v, want 11, nil", n, err)
	}
	if string(got) != "hello world" {
		t.Fatalf("Read() = %q, want %q", got, "hello world")
	}
}

func TestWritePastEndZeroFillsGap(t *testing.T) {
	s := New(4, nil)
	if _, err := s.Write(0, []byte("ab")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write(6, []byte("cd")); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, 8)
	n, err := s.Read(0, got)
	if err != nil || n != 8 {
		t.Fatalf("Read() = %d, %v, want 8, nil", n, err)
	}
	want := []byte{'a', 'b', 0, 0, 0, 0, 'c', 'd'}
	if !bytes.Equal(got, want) {
		t.Fatalf("Read() = %v, want %v", got, want)
	}
}

func TestReadPastEndReturnsMinusOne(t *testing.T) {
	s := New(8, nil)
	if _, err := s.Write(0, []byte("abc")); err != nil {
		t.Fatal(err)
	}
	n, err := s.Read(3, make([]byte, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != -1 {
		t.Fatalf("Read() at EOF = %d, want -1", n)
	}
}

func TestTruncateShrinksAndZeroesTail(t *testing.T) {
	s := New(4, nil)
	if _, err := s.Write(0, []byte("abcdefgh")); err != nil {
		t.Fatal(err)
	}
	if err := s.Truncate(3); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 3 {
		t.Fatalf("Size() after truncate = %d, want 3", s.Size())
	}

	// Growing back past the truncated boundary must observe zeros, not the
	// stale 'd' through 'h' bytes that were there before truncation.
	if _, err := s.Write(5, []byte("Z")); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 6)
	if _, err := s.Read(0, got); err != nil {
		t.Fatal(err)
	}
	want := []byte{'a', 'b', 'c', 0, 0, 'Z'}
	if !bytes.Equal(got, want) {
		t.Fatalf("Read() after regrowth = %v, want %v", got, want)
	}
}

func TestTruncateNeverGrows(t *testing.T) {
	s := New(8, nil)
	if _, err := s.Write(0, []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := s.Truncate(100); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 3 {
		t.Fatalf("Size() after growing truncate = %d, want 3 (truncate never grows)", s.Size())
	}
}

func TestTransferToAndFrom(t *testing.T) {
	s := New(4, nil)
	if _, err := s.Write(0, []byte("0123456789")); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	n, err := s.TransferTo(2, 5, &buf)
	if err != nil || n != 5 {
		t.Fatalf("TransferTo() = %d, %v, want 5, nil", n, err)
	}
	if buf.String() != "23456" {
		t.Fatalf("TransferTo() wrote %q, want %q", buf.String(), "23456")
	}

	s2 := New(4, nil)
	n, err = s2.TransferFrom(strings.NewReader("xyz"), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("TransferFrom() = %d, want 3 (short source)", n)
	}
	if s2.Size() != 4 {
		t.Fatalf("Size() after short transferFrom = %d, want 4", s2.Size())
	}
}

func TestCopyIsIndependent(t *testing.T) {
	s := New(4, nil)
	if _, err := s.Write(0, []byte("abcdef")); err != nil {
		t.Fatal(err)
	}
	dup, err := s.Copy()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dup.Write(0, []byte("XYZ")); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, 6)
	if _, err := s.Read(0, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "abcdef" {
		t.Fatalf("original mutated by writing to copy: %q", got)
	}
}

func TestReferenceCounting(t *testing.T) {
	pool := NewPagePool(4, 4)
	s := New(4, pool)
	if _, err := s.Write(0, []byte("abcd")); err != nil {
		t.Fatal(err)
	}
	s.Retain()
	if n := s.Release(); n != 1 {
		t.Fatalf("Release() = %d, want 1", n)
	}
	if s.Size() != 4 {
		t.Fatalf("Size() = %d, want 4 (store still referenced)", s.Size())
	}
	if n := s.Release(); n != 0 {
		t.Fatalf("Release() = %d, want 0", n)
	}
	if s.Size() != 0 {
		t.Fatalf("Size() after final release = %d, want 0", s.Size())
	}
}

func TestGatherScatterIO(t *testing.T) {
	s := New(8, nil)
	n, err := s.WriteV(0, [][]byte{[]byte("foo"), []byte("bar"), []byte("baz")})
	if err != nil || n != 9 {
		t.Fatalf("WriteV() = %d, %v, want 9, nil", n, err)
	}

	d1 := make([]byte, 3)
	d2 := make([]byte, 6)
	n, err = s.ReadV(0, [][]byte{d1, d2})
	if err != nil || n != 9 {
		t.Fatalf("ReadV() = %d, %v, want 9, nil", n, err)
	}
	if string(d1) != "foo" || string(d2) != "barbaz" {
		t.Fatalf("ReadV() = %q, %q, want %q, %q", d1, d2, "foo", "barbaz")
	}
}

func TestGatherWriteWithNilBufferFailsIllegalArgument(t *testing.T) {
	s := New(8, nil)
	_, err := s.WriteV(0, [][]byte{[]byte("ok"), nil})
	if !errors.Is(err, verrors.ErrIllegalArgument) {
		t.Fatalf("WriteV() err = %v, want ErrIllegalArgument", err)
	}
}

func TestScatterReadWithNilBufferListFailsIllegalArgument(t *testing.T) {
	s := New(8, nil)
	_, err := s.ReadV(0, nil)
	if !errors.Is(err, verrors.ErrIllegalArgument) {
		t.Fatalf("ReadV() err = %v, want ErrIllegalArgument", err)
	}
}
