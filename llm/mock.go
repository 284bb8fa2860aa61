package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockClient is a scriptable in-memory Client for tests and local debugging.
// Responses are served in FIFO order per method; when the queue is empty the
// configured fallbacks (or an error) are used.
type MockClient struct {
	mutex         sync.Mutex
	textResponses []string
	jsonResponses []any
	TextFallback  string
	JSONFallback  any
	Requests      []Request
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{}
}

// QueueText enqueues plain-text responses for Complete.
func (m *MockClient) QueueText(responses ...string) *MockClient {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.textResponses = append(m.textResponses, responses...)
	return m
}

// QueueJSON enqueues values to be marshaled into CompleteJSON outputs.
func (m *MockClient) QueueJSON(values ...any) *MockClient {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.jsonResponses = append(m.jsonResponses, values...)
	return m
}

func (m *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Requests = append(m.Requests, req)
	if len(m.textResponses) > 0 {
		response := m.textResponses[0]
		m.textResponses = m.textResponses[1:]
		return response, nil
	}
	if m.TextFallback != "" {
		return m.TextFallback, nil
	}
	return "", fmt.Errorf("mock llm: no text response queued")
}

func (m *MockClient) CompleteJSON(ctx context.Context, req Request, out any) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Requests = append(m.Requests, req)
	var value any
	if len(m.jsonResponses) > 0 {
		value = m.jsonResponses[0]
		m.jsonResponses = m.jsonResponses[1:]
	} else if m.JSONFallback != nil {
		value = m.JSONFallback
	} else {
		return fmt.Errorf("mock llm: no json response queued")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
