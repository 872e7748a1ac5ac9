package port

import (
	"reflect"
	"testing"
)

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"tcp": ModeTCP, "UDP": ModeUDP, " Mixed ": ModeMixed}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseMode(%q) = %s want %s", in, got, want)
		}
	}
	if _, err := ParseMode("icmp"); err == nil {
		t.Fatalf("expected error for icmp")
	}
	if p, ok := ModeUDP.Protocol(); !ok || p != UDP {
		t.Fatalf("udp mode protocol = %s,%v", p, ok)
	}
	if _, ok := ModeMixed.Protocol(); ok {
		t.Fatalf("mixed mode must not map to a single protocol")
	}
}

func TestFromMask(t *testing.T) {
	got := FromMask(0b101, 3)
	want := Assignment{UDP, TCP, UDP}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if !reflect.DeepEqual(FromMask(0, 2), Uniform(TCP, 2)) {
		t.Fatalf("mask 0 must be all tcp")
	}
}

func TestMatchString(t *testing.T) {
	single := Match{Sequence: Sequence{7000, 8000, 9000}, Assignment: Uniform(TCP, 3)}
	if got := single.String(); got != "7000,8000,9000" {
		t.Fatalf("single match rendered %q", got)
	}
	mixed := Match{Sequence: Sequence{7000, 8000}, Assignment: Assignment{TCP, UDP}}
	if got := mixed.String(); got != "7000/tcp,8000/udp" {
		t.Fatalf("mixed match rendered %q", got)
	}
	if got := single.Labeled(); got != "7000/tcp,8000/tcp,9000/tcp" {
		t.Fatalf("labeled rendered %q", got)
	}
}

func TestSequenceCloneIsIndependent(t *testing.T) {
	s := Sequence{1, 2}
	c := s.Clone()
	c[0] = 9
	if s[0] != 1 {
		t.Fatalf("clone shares backing array")
	}
}
