package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient answers from a per-stage script for offline runs and tests.
// Each stage's replies are consumed in order; the last one repeats.
type ScriptedClient struct {
	mu      sync.Mutex
	replies map[string][]string
	errs    map[string]error
	calls   []ScriptedCall
}

// ScriptedCall records one exchange.
type ScriptedCall struct {
	Stage  string
	System string
	User   string
}

func NewScriptedClient(replies map[string]string) *ScriptedClient {
	s := &ScriptedClient{replies: map[string][]string{}, errs: map[string]error{}}
	for stage, r := range replies {
		s.replies[stage] = []string{r}
	}
	return s
}

// Queue appends replies for stage.
func (s *ScriptedClient) Queue(stage string, replies ...string) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[stage] = append(s.replies[stage], replies...)
	return s
}

// Fail makes every call for stage return err.
func (s *ScriptedClient) Fail(stage string, err error) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[stage] = err
	return s
}

// Calls returns a copy of the recorded exchanges.
func (s *ScriptedClient) Calls() []ScriptedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ScriptedCall(nil), s.calls...)
}

func (s *ScriptedClient) Name() string { return "Scripted" }
func (s *ScriptedClient) Close() error { return nil }

func (s *ScriptedClient) Complete(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stage := PhaseFrom(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ScriptedCall{Stage: stage, System: system, User: user})
	if err := s.errs[stage]; err != nil {
		return "", err
	}
	q := s.replies[stage]
	if len(q) == 0 {
		return "", fmt.Errorf("scripted: no reply for stage %q: %w", stage, ErrEmptyCompletion)
	}
	out := q[0]
	if len(q) > 1 {
		s.replies[stage] = q[1:]
	}
	return out, nil
}

// DemoReplies is a canned login-page exchange used by the "fake" provider.
func DemoReplies() map[string]string {
	return map[string]string{
		"plan": "PLANNER_OUTPUT:\n" + `{"layout":"centered","components":[{"type":"Card","props":{"title":"Login","components":[` +
			`{"type":"Input","props":{"label":"Email","placeholder":"you@example.com"}},` +
			`{"type":"Input","props":{"label":"Password","placeholder":"Enter your password","type":"password"}},` +
			`{"type":"Button","props":{"label":"Login","variant":"primary"}}]}}]}`,
		"validate": "VALIDATION_OUTPUT:\nVALID",
		"generate": "GENERATED_CODE:\n```jsx\nimport { Card, Input, Button } from '@/components/lib';\n\n" +
			"export default function GeneratedUI() {\n  return (\n    <Card title=\"Login\">\n" +
			"      <Input label=\"Email\" placeholder=\"you@example.com\" />\n" +
			"      <Input label=\"Password\" placeholder=\"Enter your password\" type=\"password\" />\n" +
			"      <Button label=\"Login\" variant=\"primary\" />\n    </Card>\n  );\n}\n```",
		"explain": "EXPLANATION:\nA login card with email and password fields and a primary Login button.",
	}
}
