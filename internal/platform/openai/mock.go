package openai

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
)

// Mock is an in-process backend for local runs and tests. Handler, when set,
// decides every response; otherwise canned content is returned.
type Mock struct {
	Handler func(ctx context.Context, req Request) (Response, error)

	mu    sync.Mutex
	calls []Request
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Complete(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Handler != nil {
		return m.Handler(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if req.JSON {
		return Response{Text: cannedPlan(req.User), Model: "mock"}, nil
	}
	return Response{Text: CannedLesson, Model: "mock"}, nil
}

// Calls returns how many completions were requested.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest returns the most recent request, if any.
func (m *Mock) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Request{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// CannedLesson is a small valid lesson component.
const CannedLesson = `"use client";
import React from "react";

interface LessonData {
  outline: string;
  details: string;
}

const lesson: LessonData = {
  outline: "Sample lesson",
  details: "Generated locally without a model.",
};

export default function LessonPage() {
  return (
    <main className="mx-auto max-w-3xl p-6">
      <h1 className="text-2xl font-semibold">{lesson.outline}</h1>
      <p>{lesson.details}</p>
      <a href="/">Back to Lessons</a>
    </main>
  );
}
`

var outlineRe = regexp.MustCompile(`(?s)"""(.*?)"""`)

func cannedPlan(user string) string {
	outline := "Untitled outline"
	if m := outlineRe.FindStringSubmatch(user); len(m) == 2 && strings.TrimSpace(m[1]) != "" {
		outline = strings.TrimSpace(m[1])
	}
	type part struct {
		ID          int    `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Details     string `json:"details"`
	}
	payload := struct {
		Success bool   `json:"success"`
		Outline string `json:"outline"`
		Lessons []part `json:"lessons"`
	}{
		Success: true,
		Outline: outline,
		Lessons: []part{
			{ID: 1, Title: "Foundations", Description: "Core ideas of " + outline, Details: "An overview of " + outline + "."},
			{ID: 2, Title: "Practice", Description: "Worked examples", Details: "Examples applying " + outline + "."},
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}
