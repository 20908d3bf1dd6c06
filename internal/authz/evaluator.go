package authz

import "errors"

// Evaluator decides whether an auth context satisfies a permission
// requirement. It is stateless; one instance serves all requests.
type Evaluator struct {
	catalog *Catalog
	policy  UnmappedPolicy
}

// NewEvaluator builds an evaluator over a catalog with the given policy for
// unmapped operations.
func NewEvaluator(catalog *Catalog, policy UnmappedPolicy) (*Evaluator, error) {
	if catalog == nil {
		return nil, errors.New("authz: catalog is required")
	}
	return &Evaluator{catalog: catalog, policy: policy}, nil
}

// Catalog exposes the evaluator's permission catalog.
func (e *Evaluator) Catalog() *Catalog { return e.catalog }

// HasPermission evaluates a requirement in strict order: unmapped policy,
// admin bypass, role definition, explicit grants, role defaults, then a
// fail-closed deny at the end of the chain. When required holds more than
// one permission, any one of them satisfies the check.
func (e *Evaluator) HasPermission(ctx *AuthContext, required []string) bool {
	if len(required) == 0 {
		return e.policy == AllowUnmapped
	}
	if ctx == nil {
		return false
	}
	if ctx.IsAdmin() {
		return true
	}
	if ctx.RoleDefinition != nil {
		return anyOf(required, ctx.RoleDefinition.Has)
	}
	if ctx.Permissions != nil {
		granted := toSet(ctx.Permissions)
		return anyOf(required, func(p string) bool { _, ok := granted[p]; return ok })
	}
	if defaults, ok := e.catalog.RoleDefaults(ctx.Role); ok {
		granted := toSet(defaults)
		return anyOf(required, func(p string) bool { _, ok := granted[p]; return ok })
	}
	return false
}

// CanAny reports whether the context holds at least one of the permissions.
func (e *Evaluator) CanAny(ctx *AuthContext, permissions []string) bool {
	if len(permissions) == 0 {
		return e.policy == AllowUnmapped
	}
	for _, p := range permissions {
		if e.HasPermission(ctx, []string{p}) {
			return true
		}
	}
	return false
}

// CanAll reports whether the context holds every one of the permissions.
func (e *Evaluator) CanAll(ctx *AuthContext, permissions []string) bool {
	for _, p := range permissions {
		if !e.HasPermission(ctx, []string{p}) {
			return false
		}
	}
	return true
}

// Require returns a PermissionDeniedError when the requirement is not met.
func (e *Evaluator) Require(ctx *AuthContext, action string, required []string) error {
	if e.HasPermission(ctx, required) {
		return nil
	}
	return e.denied(ctx, action, required)
}

// RequireAny is Require with at-least-one semantics over permissions.
func (e *Evaluator) RequireAny(ctx *AuthContext, action string, permissions []string) error {
	if e.CanAny(ctx, permissions) {
		return nil
	}
	return e.denied(ctx, action, permissions)
}

// RequireAll is Require with every-one semantics over permissions.
func (e *Evaluator) RequireAll(ctx *AuthContext, action string, permissions []string) error {
	if e.CanAll(ctx, permissions) {
		return nil
	}
	return e.denied(ctx, action, permissions)
}

// RequireOperation resolves the catalog entry for the operation and checks it.
func (e *Evaluator) RequireOperation(ctx *AuthContext, action, table string, verb Verb) error {
	name := action
	if name == "" {
		name = table + "." + string(verb)
	}
	return e.Require(ctx, name, e.catalog.Required(action, table, verb))
}

func (e *Evaluator) denied(ctx *AuthContext, action string, required []string) error {
	err := &PermissionDeniedError{Action: action, Permissions: required}
	if ctx != nil {
		err.UserID = ctx.UserID
	}
	return err
}

func anyOf(required []string, has func(string) bool) bool {
	for _, p := range required {
		if has(p) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
