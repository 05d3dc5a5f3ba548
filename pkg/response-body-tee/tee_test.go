package tee

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestReadersGetWholeBody(t *testing.T) {
	buf := NewBuffer()
	if _, err := buf.ReadFrom(strings.NewReader("This is the body")); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		body, err := io.ReadAll(buf.NewReader(context.Background()))
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != "This is the body" {
			t.Fatalf("Body: %s", body)
		}
	}
}

func TestReaderFollowsDownload(t *testing.T) {
	pr, pw := io.Pipe()
	buf := NewBuffer()
	go buf.ReadFrom(pr)

	r := buf.NewReader(context.Background())
	p := make([]byte, 16)

	go pw.Write([]byte("first"))
	n, err := r.Read(p)
	if err != nil || string(p[:n]) != "first" {
		t.Fatalf("Read %q, %v", p[:n], err)
	}

	go func() {
		pw.Write([]byte("second"))
		pw.Close()
	}()
	rest, err := io.ReadAll(r)
	if err != nil || string(rest) != "second" {
		t.Fatalf("Read %q, %v", rest, err)
	}
}

func TestBytesWaitsForCompletion(t *testing.T) {
	pr, pw := io.Pipe()
	buf := NewBuffer()
	go buf.ReadFrom(pr)
	go func() {
		pw.Write([]byte("Hello "))
		time.Sleep(10 * time.Millisecond)
		pw.Write([]byte("world"))
		pw.Close()
	}()

	body, err := buf.Bytes(context.Background())
	if err != nil || string(body) != "Hello world" {
		t.Fatalf("Body %q, %v", body, err)
	}
	if buf.Len() != len("Hello world") {
		t.Fatalf("Len is %d", buf.Len())
	}
}

func TestReadErrorIsReturnedAfterData(t *testing.T) {
	readErr := errors.New("connection reset")
	pr, pw := io.Pipe()
	buf := NewBuffer()
	go buf.ReadFrom(pr)
	go func() {
		pw.Write([]byte("partial"))
		pw.CloseWithError(readErr)
	}()

	body, err := io.ReadAll(buf.NewReader(context.Background()))
	if !errors.Is(err, readErr) {
		t.Fatalf("Error is %v", err)
	}
	if string(body) != "partial" {
		t.Fatalf("Body: %s", body)
	}
	if _, err := buf.Bytes(context.Background()); !errors.Is(err, readErr) {
		t.Fatalf("Bytes error is %v", err)
	}
}

func TestCloseWithErrorOnlyOnce(t *testing.T) {
	buf := NewBuffer()
	buf.CloseWithError(nil)
	buf.CloseWithError(errors.New("late"))
	if _, err := buf.Bytes(context.Background()); err != nil {
		t.Fatalf("Error is %v", err)
	}
}

func TestReaderHonorsContext(t *testing.T) {
	buf := NewBuffer()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := buf.NewReader(ctx).Read(make([]byte, 1)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Error is %v", err)
	}
	if _, err := buf.Bytes(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Bytes error is %v", err)
	}
}
