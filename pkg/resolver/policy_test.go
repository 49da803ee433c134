// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// fakeResolver fails the first `failures` query calls with the given error,
// then succeeds.
type fakeResolver struct {
	failures int
	failWith error
	calls    int

	txnCtx      context.Context
	commitErr   error
	commitCalls int
}

func (f *fakeResolver) step() error {
	f.calls++
	if f.calls <= f.failures {
		return f.failWith
	}
	return nil
}

func (f *fakeResolver) Name() string { return "fake" }
func (f *fakeResolver) Close() error { return nil }

func (f *fakeResolver) StartTransaction(ctx context.Context) (Txn, error) {
	f.txnCtx = ctx
	return "t1", nil
}

func (f *fakeResolver) CommitTransaction(context.Context, Txn) error {
	f.commitCalls++
	return f.commitErr
}

func (f *fakeResolver) RollbackTransaction(context.Context, Txn) error {
	return nil
}

func (f *fakeResolver) CreateInstance(_ context.Context, _ Txn, _ AuthInfo, inst *instance.Instance) (*instance.Instance, error) {
	return inst, f.step()
}

func (f *fakeResolver) UpsertInstance(_ context.Context, _ Txn, _ AuthInfo, inst *instance.Instance) (*instance.Instance, error) {
	return inst, f.step()
}

func (f *fakeResolver) UpdateInstance(_ context.Context, _ Txn, _ AuthInfo, inst *instance.Instance, _ map[string]any) (*instance.Instance, error) {
	return inst, f.step()
}

func (f *fakeResolver) DeleteInstance(context.Context, Txn, AuthInfo, *instance.Instance, bool) ([]*instance.Instance, error) {
	return nil, f.step()
}

func (f *fakeResolver) DeleteByPathPrefix(context.Context, Txn, AuthInfo, *schema.Entity, string, bool) error {
	return f.step()
}

func (f *fakeResolver) QueryInstances(context.Context, Txn, AuthInfo, *instance.Instance, bool) ([]*instance.Instance, error) {
	return nil, f.step()
}

func (f *fakeResolver) QueryChildInstances(context.Context, Txn, AuthInfo, string, *instance.Instance) ([]*instance.Instance, error) {
	return nil, f.step()
}

func (f *fakeResolver) QueryConnectedInstances(context.Context, Txn, AuthInfo, *schema.Relationship, *instance.Instance, *instance.Instance) ([]*instance.Instance, error) {
	return nil, f.step()
}

func (f *fakeResolver) QueryByJoin(context.Context, Txn, AuthInfo, *JoinQuery) ([]map[string]any, error) {
	return nil, f.step()
}

func (f *fakeResolver) ConnectInstances(context.Context, Txn, AuthInfo, *instance.Instance, *instance.Instance, *schema.Relationship, bool) (*instance.Instance, error) {
	return nil, f.step()
}

func (f *fakeResolver) FullTextSearch(context.Context, Txn, AuthInfo, *schema.Entity, string, map[string]any) ([]*instance.Instance, error) {
	return nil, f.step()
}

func (f *fakeResolver) EnsureSchema(context.Context, *schema.Module) error { return f.step() }

func testPolicy(retries int) PolicyConfig {
	return PolicyConfig{
		Retry: RetryConfig{
			Enabled:      true,
			MaxRetries:   retries,
			InitialDelay: time.Millisecond,
			Strategy:     BackoffConstant,
		},
		Breaker: CircuitBreakerConfig{
			FailureThreshold: 100,
			ResetTimeout:     time.Minute,
		},
	}
}

func TestPolicy_RetriesUnavailable(t *testing.T) {
	unavailable := types.NewError(types.KindResolverUnavailable, "backend down")
	fake := &fakeResolver{failures: 2, failWith: unavailable}
	r := WrapWithPolicy(fake, testPolicy(3))

	_, err := r.QueryInstances(context.Background(), "t1", AuthInfo{}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.calls)
}

func TestPolicy_ExhaustsRetries(t *testing.T) {
	unavailable := types.NewError(types.KindResolverUnavailable, "backend down")
	fake := &fakeResolver{failures: 10, failWith: unavailable}
	r := WrapWithPolicy(fake, testPolicy(2))

	_, err := r.QueryInstances(context.Background(), "t1", AuthInfo{}, nil, true)
	require.Error(t, err)
	assert.Equal(t, types.KindResolverUnavailable, types.KindOf(err))
	assert.Equal(t, 3, fake.calls)
}

func TestPolicy_DomainErrorsNotRetried(t *testing.T) {
	dup := types.NewError(types.KindUnique, "duplicate key")
	fake := &fakeResolver{failures: 10, failWith: dup}
	r := WrapWithPolicy(fake, testPolicy(3))

	_, err := r.CreateInstance(context.Background(), "t1", AuthInfo{}, instance.New("M/E", nil))
	require.Error(t, err)
	assert.Equal(t, types.KindUnique, types.KindOf(err))
	assert.Equal(t, 1, fake.calls)
}

func TestPolicy_BreakerOpens(t *testing.T) {
	unavailable := types.NewError(types.KindResolverUnavailable, "backend down")
	fake := &fakeResolver{failures: 1000, failWith: unavailable}
	cfg := testPolicy(0)
	cfg.Breaker.FailureThreshold = 3
	r := WrapWithPolicy(fake, cfg)

	for i := 0; i < 3; i++ {
		_, err := r.QueryInstances(context.Background(), "t1", AuthInfo{}, nil, true)
		require.Error(t, err)
	}
	before := fake.calls

	// circuit is open now; the inner resolver must not be reached
	_, err := r.QueryInstances(context.Background(), "t1", AuthInfo{}, nil, true)
	require.Error(t, err)
	assert.Equal(t, types.KindResolverUnavailable, types.KindOf(err))
	assert.Equal(t, before, fake.calls)
}

func TestPolicy_CancelDuringRetry(t *testing.T) {
	unavailable := types.NewError(types.KindResolverUnavailable, "backend down")
	fake := &fakeResolver{failures: 1000, failWith: unavailable}
	cfg := testPolicy(5)
	cfg.Retry.InitialDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := WrapWithPolicy(fake, cfg)
	_, err := r.QueryInstances(ctx, "t1", AuthInfo{}, nil, true)
	require.Error(t, err)
	assert.LessOrEqual(t, fake.calls, 2)
}

func TestPolicy_TransactionKeepsCallerContext(t *testing.T) {
	fake := &fakeResolver{}
	cfg := testPolicy(3)
	cfg.RequestTimeout = 30 * time.Second
	r := WrapWithPolicy(fake, cfg)

	ctx := context.Background()
	_, err := r.StartTransaction(ctx)
	require.NoError(t, err)

	// The transaction lives past this call; a per-call deadline would
	// cancel it before commit.
	require.NotNil(t, fake.txnCtx)
	_, hasDeadline := fake.txnCtx.Deadline()
	assert.False(t, hasDeadline)
	assert.True(t, fake.txnCtx == ctx)
}

func TestPolicy_CommitNotRetried(t *testing.T) {
	fake := &fakeResolver{
		commitErr: types.NewError(types.KindResolverUnavailable, "backend down"),
	}
	r := WrapWithPolicy(fake, testPolicy(3))

	err := r.CommitTransaction(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, types.KindResolverUnavailable, types.KindOf(err))
	// A failed commit consumes the transaction; retrying could only
	// report a misleading unknown-transaction error.
	assert.Equal(t, 1, fake.commitCalls)
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})
	unavailable := types.NewError(types.KindResolverUnavailable, "down")

	require.NoError(t, cb.Allow())
	cb.Record(unavailable)
	assert.Equal(t, StateClosed, cb.State())
	cb.Record(unavailable)
	assert.Equal(t, StateOpen, cb.State())
	require.Error(t, cb.Allow())

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.Record(nil)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     5 * time.Millisecond,
	})
	unavailable := types.NewError(types.KindResolverUnavailable, "down")
	cb.Record(unavailable)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, cb.Allow())
	cb.Record(unavailable)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_DomainErrorsCountAsSuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	cb.Record(types.NewError(types.KindNotFound, "missing"))
	assert.Equal(t, StateClosed, cb.State())
}

func TestRegistry_Routing(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory(DefaultName, func() (Resolver, error) {
		return &fakeResolver{}, nil
	})
	reg.Bind("Shop/Order", "pg")

	assert.Equal(t, "pg", reg.NameFor("Shop/Order"))
	assert.Equal(t, DefaultName, reg.NameFor("Shop/Customer"))

	r, err := reg.New(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "fake", r.Name())

	_, err = reg.New("pg")
	require.Error(t, err)
	assert.Equal(t, types.KindConfig, types.KindOf(err))
}
