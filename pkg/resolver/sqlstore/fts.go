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
package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// FullTextSearch matches the query string against every text-typed column
// of the entity. This is a portable LIKE scan, not an index-backed search;
// a dedicated search resolver can replace it through the resolver registry.
func (s *Store) FullTextSearch(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, entity *schema.Entity, query string, opts map[string]any) ([]*instance.Instance, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.NewError(types.KindSearchUnavailable, "empty search query")
	}
	var conds []string
	var args []any
	needle := "%" + query + "%"
	for _, a := range entity.Attrs {
		switch a.Type {
		case types.TString, types.TEmail, types.TURL:
			conds = append(conds, Quote(a.Name)+" LIKE ?")
			args = append(args, needle)
		}
	}
	if len(conds) == 0 {
		return nil, types.NewError(types.KindSearchUnavailable, "%s has no searchable text attributes", entity.FQName())
	}
	where := fmt.Sprintf(" WHERE (%s) AND %s = 0", strings.Join(conds, " OR "), Quote(schema.DeletedAttr))
	limit := 0
	if opts != nil {
		limit = int(cast.ToInt64(opts["limit"]))
	}
	insts, err := s.selectWhere(ctx, txn, entity, where, args)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(insts) > limit {
		insts = insts[:limit]
	}
	return insts, nil
}
