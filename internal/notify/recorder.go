package notify

import (
	"context"
	"sync"
)

// Recorder 记录所有通知的内存实现，供测试断言
type Recorder struct {
	mu   sync.Mutex
	sent []Envelope
	Err  error // 非 nil 时每次投递都返回该错误
}

func (r *Recorder) NotifyBroadcast(_ context.Context, event Event, payload any) error {
	return r.record(Envelope{Event: event, Payload: payload})
}

func (r *Recorder) NotifyPrincipal(_ context.Context, to Recipient, event Event, payload any) error {
	return r.record(Envelope{Event: event, Target: to.ID, TargetRole: to.Role, Payload: payload})
}

func (r *Recorder) record(env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, env)
	return nil
}

// Sent 返回已记录通知的副本
func (r *Recorder) Sent() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.sent))
	copy(out, r.sent)
	return out
}

// ByEvent 按事件名过滤
func (r *Recorder) ByEvent(event Event) []Envelope {
	var out []Envelope
	for _, env := range r.Sent() {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}
