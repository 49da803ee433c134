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
	"time"

	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
	"go.uber.org/zap"
)

// BackoffStrategy selects how retry delays grow.
type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryConfig controls retries of ResolverUnavailable failures.
type RetryConfig struct {
	Enabled      bool
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Strategy     BackoffStrategy
}

// PolicyConfig is the policy envelope around a resolver, applied
// innermost-to-outermost: timeout, retry, circuit breaker.
type PolicyConfig struct {
	RequestTimeout time.Duration
	Retry          RetryConfig
	Breaker        CircuitBreakerConfig
	Logger         *zap.Logger
}

// DefaultPolicyConfig returns the default envelope: 30s request timeout,
// 3 exponential retries capped at 5s, standard breaker thresholds.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		RequestTimeout: 30 * time.Second,
		Retry: RetryConfig{
			Enabled:      true,
			MaxRetries:   3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Strategy:     BackoffExponential,
		},
		Breaker: DefaultCircuitBreakerConfig(),
	}
}

// WrapWithPolicy wraps a resolver in the policy envelope. Only
// ResolverUnavailable failures are retried or counted by the breaker;
// domain errors pass straight through.
func WrapWithPolicy(inner Resolver, cfg PolicyConfig) Resolver {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &policyResolver{
		inner:   inner,
		cfg:     cfg,
		breaker: NewCircuitBreaker(cfg.Breaker),
	}
}

type policyResolver struct {
	inner   Resolver
	cfg     PolicyConfig
	breaker *CircuitBreaker
}

func (p *policyResolver) Name() string { return p.inner.Name() }
func (p *policyResolver) Close() error { return p.inner.Close() }

func (p *policyResolver) delay(attempt int) time.Duration {
	d := p.cfg.Retry.InitialDelay
	switch p.cfg.Retry.Strategy {
	case BackoffLinear:
		d = time.Duration(attempt+1) * p.cfg.Retry.InitialDelay
	case BackoffExponential:
		for i := 0; i < attempt; i++ {
			d *= 2
		}
	}
	if p.cfg.Retry.MaxDelay > 0 && d > p.cfg.Retry.MaxDelay {
		d = p.cfg.Retry.MaxDelay
	}
	return d
}

// execute runs one resolver operation through the envelope.
func (p *policyResolver) execute(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := p.breaker.Allow(); err != nil {
		return err
	}
	maxAttempts := 1
	if p.cfg.Retry.Enabled {
		maxAttempts = p.cfg.Retry.MaxRetries + 1
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if p.cfg.RequestTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if callCtx != ctx && callCtx.Err() == context.DeadlineExceeded && err != nil {
			err = types.WrapError(types.KindResolverUnavailable, err, "%s timed out after %v", op, p.cfg.RequestTimeout)
		}
		p.breaker.Record(err)
		if err == nil {
			return nil
		}
		lastErr = err
		if !types.IsKind(err, types.KindResolverUnavailable) {
			return err
		}
		if ctx.Err() != nil || attempt == maxAttempts-1 {
			break
		}
		d := p.delay(attempt)
		p.cfg.Logger.Warn("resolver call failed, retrying",
			zap.String("resolver", p.inner.Name()),
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", d),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return types.WrapError(types.KindResolverUnavailable, ctx.Err(), "%s cancelled during retry", op)
		case <-time.After(d):
		}
	}
	return lastErr
}

// executeTxn runs a transaction-lifecycle call through the breaker only.
// No per-call timeout: a deadline context carried past StartTransaction
// would cancel the database transaction before commit. No retries either;
// a failed commit or rollback leaves the transaction consumed, so a second
// attempt can only report a misleading unknown-transaction error.
func (p *policyResolver) executeTxn(op string, fn func() error) error {
	if err := p.breaker.Allow(); err != nil {
		return err
	}
	err := fn()
	p.breaker.Record(err)
	return err
}

func (p *policyResolver) StartTransaction(ctx context.Context) (Txn, error) {
	var txn Txn
	err := p.executeTxn("startTransaction", func() error {
		var e error
		txn, e = p.inner.StartTransaction(ctx)
		return e
	})
	return txn, err
}

func (p *policyResolver) CommitTransaction(ctx context.Context, txn Txn) error {
	return p.executeTxn("commitTransaction", func() error {
		return p.inner.CommitTransaction(ctx, txn)
	})
}

func (p *policyResolver) RollbackTransaction(ctx context.Context, txn Txn) error {
	return p.executeTxn("rollbackTransaction", func() error {
		return p.inner.RollbackTransaction(ctx, txn)
	})
}

func (p *policyResolver) CreateInstance(ctx context.Context, txn Txn, auth AuthInfo, inst *instance.Instance) (*instance.Instance, error) {
	var out *instance.Instance
	err := p.execute(ctx, "createInstance", func(ctx context.Context) error {
		var e error
		out, e = p.inner.CreateInstance(ctx, txn, auth, inst)
		return e
	})
	return out, err
}

func (p *policyResolver) UpsertInstance(ctx context.Context, txn Txn, auth AuthInfo, inst *instance.Instance) (*instance.Instance, error) {
	var out *instance.Instance
	err := p.execute(ctx, "upsertInstance", func(ctx context.Context) error {
		var e error
		out, e = p.inner.UpsertInstance(ctx, txn, auth, inst)
		return e
	})
	return out, err
}

func (p *policyResolver) UpdateInstance(ctx context.Context, txn Txn, auth AuthInfo, inst *instance.Instance, newAttrs map[string]any) (*instance.Instance, error) {
	var out *instance.Instance
	err := p.execute(ctx, "updateInstance", func(ctx context.Context) error {
		var e error
		out, e = p.inner.UpdateInstance(ctx, txn, auth, inst, newAttrs)
		return e
	})
	return out, err
}

func (p *policyResolver) DeleteInstance(ctx context.Context, txn Txn, auth AuthInfo, inst *instance.Instance, purge bool) ([]*instance.Instance, error) {
	var out []*instance.Instance
	err := p.execute(ctx, "deleteInstance", func(ctx context.Context) error {
		var e error
		out, e = p.inner.DeleteInstance(ctx, txn, auth, inst, purge)
		return e
	})
	return out, err
}

func (p *policyResolver) DeleteByPathPrefix(ctx context.Context, txn Txn, auth AuthInfo, entity *schema.Entity, prefix string, purge bool) error {
	return p.execute(ctx, "deleteByPathPrefix", func(ctx context.Context) error {
		return p.inner.DeleteByPathPrefix(ctx, txn, auth, entity, prefix, purge)
	})
}

func (p *policyResolver) QueryInstances(ctx context.Context, txn Txn, auth AuthInfo, inst *instance.Instance, queryAll bool) ([]*instance.Instance, error) {
	var out []*instance.Instance
	err := p.execute(ctx, "queryInstances", func(ctx context.Context) error {
		var e error
		out, e = p.inner.QueryInstances(ctx, txn, auth, inst, queryAll)
		return e
	})
	return out, err
}

func (p *policyResolver) QueryChildInstances(ctx context.Context, txn Txn, auth AuthInfo, parentPath string, inst *instance.Instance) ([]*instance.Instance, error) {
	var out []*instance.Instance
	err := p.execute(ctx, "queryChildInstances", func(ctx context.Context) error {
		var e error
		out, e = p.inner.QueryChildInstances(ctx, txn, auth, parentPath, inst)
		return e
	})
	return out, err
}

func (p *policyResolver) QueryConnectedInstances(ctx context.Context, txn Txn, auth AuthInfo, rel *schema.Relationship, connected, inst *instance.Instance) ([]*instance.Instance, error) {
	var out []*instance.Instance
	err := p.execute(ctx, "queryConnectedInstances", func(ctx context.Context) error {
		var e error
		out, e = p.inner.QueryConnectedInstances(ctx, txn, auth, rel, connected, inst)
		return e
	})
	return out, err
}

func (p *policyResolver) QueryByJoin(ctx context.Context, txn Txn, auth AuthInfo, q *JoinQuery) ([]map[string]any, error) {
	var out []map[string]any
	err := p.execute(ctx, "queryByJoin", func(ctx context.Context) error {
		var e error
		out, e = p.inner.QueryByJoin(ctx, txn, auth, q)
		return e
	})
	return out, err
}

func (p *policyResolver) ConnectInstances(ctx context.Context, txn Txn, auth AuthInfo, a, b *instance.Instance, rel *schema.Relationship, orUpdate bool) (*instance.Instance, error) {
	var out *instance.Instance
	err := p.execute(ctx, "connectInstances", func(ctx context.Context) error {
		var e error
		out, e = p.inner.ConnectInstances(ctx, txn, auth, a, b, rel, orUpdate)
		return e
	})
	return out, err
}

func (p *policyResolver) FullTextSearch(ctx context.Context, txn Txn, auth AuthInfo, entity *schema.Entity, query string, opts map[string]any) ([]*instance.Instance, error) {
	var out []*instance.Instance
	err := p.execute(ctx, "fullTextSearch", func(ctx context.Context) error {
		var e error
		out, e = p.inner.FullTextSearch(ctx, txn, auth, entity, query, opts)
		return e
	})
	return out, err
}

func (p *policyResolver) EnsureSchema(ctx context.Context, module *schema.Module) error {
	return p.execute(ctx, "ensureSchema", func(ctx context.Context) error {
		return p.inner.EnsureSchema(ctx, module)
	})
}
