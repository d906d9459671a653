package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer

	if err := run(context.Background(), &out, &errOut, nil); err != nil {
		t.Fatalf("run with no args: %v", err)
	}
	if !strings.Contains(out.String(), "Usage: memorytest") {
		t.Errorf("output = %q, want usage text", out.String())
	}
}

func TestRun_HelpFlag(t *testing.T) {
	for _, flag := range []string{"-h", "-help", "--help"} {
		var out, errOut bytes.Buffer
		if err := run(context.Background(), &out, &errOut, []string{flag}); err != nil {
			t.Errorf("run %s: %v", flag, err)
		}
		if !strings.Contains(out.String(), "Usage: memorytest") {
			t.Errorf("run %s output = %q, want usage text", flag, out.String())
		}
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"summon"})
	if err == nil || !strings.Contains(err.Error(), "unknown command: summon") {
		t.Errorf("err = %v, want unknown command", err)
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"-bogus"})
	if err == nil || !strings.Contains(err.Error(), "unknown flag: -bogus") {
		t.Errorf("err = %v, want unknown flag", err)
	}
}

func TestRun_BadOutputFormat(t *testing.T) {
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"-o", "yaml", "version"})
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("err = %v, want unknown output format", err)
	}
}

func TestRun_AskRequiresQuestion(t *testing.T) {
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"ask"})
	if err == nil || !strings.Contains(err.Error(), "usage: memorytest ask") {
		t.Errorf("err = %v, want ask usage", err)
	}
}

func TestRunVersion_Text(t *testing.T) {
	var out bytes.Buffer

	if err := runVersion(&out, "text"); err != nil {
		t.Fatalf("runVersion: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "memorytest") {
		t.Errorf("output = %q, want binary name", got)
	}
	if !strings.Contains(got, "version:") {
		t.Errorf("output = %q, want version field", got)
	}
}

func TestRunVersion_JSON(t *testing.T) {
	var out bytes.Buffer

	if err := runVersion(&out, "json"); err != nil {
		t.Fatalf("runVersion: %v", err)
	}

	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("version output is not JSON: %v", err)
	}
	if info["name"] != "memorytest" {
		t.Errorf("name = %q, want memorytest", info["name"])
	}
	if info["version"] == "" {
		t.Error("version field missing")
	}
}

// Flag values may be attached with = or passed as separate arguments;
// both spellings must parse identically.
func TestRun_FlagSpellings(t *testing.T) {
	tests := [][]string{
		{"-o", "json", "version"},
		{"-o=json", "version"},
		{"--output", "json", "version"},
		{"--output=json", "version"},
	}
	for _, args := range tests {
		var out, errOut bytes.Buffer
		if err := run(context.Background(), &out, &errOut, args); err != nil {
			t.Errorf("run %v: %v", args, err)
			continue
		}
		var info map[string]string
		if err := json.Unmarshal(out.Bytes(), &info); err != nil {
			t.Errorf("run %v: output is not JSON: %v", args, err)
		}
	}
}

func TestRun_ConfigFlagMissingFile(t *testing.T) {
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"-config", "/nonexistent/config.yaml", "serve"})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("err = %v, want config file not found", err)
	}
}
