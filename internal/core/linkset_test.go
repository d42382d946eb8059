package core

import (
	"reflect"
	"testing"
)

func TestLinkSet_InsertionOrder(t *testing.T) {
	s := NewLinkSet()
	s.AddAll([]string{"https://a.example", "https://b.example", "https://a.example", "https://c.example"})

	want := []string{"https://a.example", "https://b.example", "https://c.example"}
	if got := s.URLs(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if s.Len() != 3 {
		t.Errorf("expected len 3, got %d", s.Len())
	}
}

func TestLinkSet_AddReportsNew(t *testing.T) {
	s := NewLinkSet()
	if !s.Add("https://a.example") {
		t.Error("first add should report new")
	}
	if s.Add("https://a.example") {
		t.Error("duplicate add should not report new")
	}
	if s.Add("") {
		t.Error("empty URL should be ignored")
	}
}

func TestLinkSet_UnionDoesNotMutate(t *testing.T) {
	s := NewLinkSet("https://a.example")
	u := s.Union([]string{"https://b.example"})

	if s.Len() != 1 {
		t.Errorf("original set mutated: %v", s.URLs())
	}
	want := []string{"https://a.example", "https://b.example"}
	if got := u.URLs(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestLinkSet_URLsReturnsCopy(t *testing.T) {
	s := NewLinkSet("https://a.example")
	urls := s.URLs()
	urls[0] = "mutated"
	if s.URLs()[0] != "https://a.example" {
		t.Error("URLs must return a copy")
	}
}
