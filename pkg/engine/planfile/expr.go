package planfile

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	"github.com/lazyplan/lazyplan/pkg/engine/internal/types"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/expr"
)

// Expr is an expression in a plan file. Every expression is a mapping with
// a single key naming the expression:
//
//	col: name
//	lit: 3
//	all: true
//	as: {expr: {col: a}, name: b}
//	cast: {expr: {col: a}, type: float64}
//	except: {col: a}
//	gt: [{col: a}, {lit: 0}]    # binary operators by name
//	not: {col: ok}              # unary operators by name
//	sum: {col: a}               # aggregations by name
type Expr struct {
	expr.Expr
}

type aliasExpr struct {
	Expr Expr   `yaml:"expr"`
	Name string `yaml:"name"`
}

type castExpr struct {
	Expr Expr   `yaml:"expr"`
	Type string `yaml:"type"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Expr) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return errors.Errorf("line %d: expression must be a mapping with exactly one key", node.Line)
	}
	key, value := node.Content[0].Value, node.Content[1]

	parsed, err := parseExpr(key, value)
	if err != nil {
		return errors.Wrapf(err, "line %d: %s", node.Line, key)
	}
	e.Expr = parsed
	return nil
}

func parseExpr(key string, value *yaml.Node) (expr.Expr, error) {
	switch key {
	case "col":
		var name string
		if err := value.Decode(&name); err != nil {
			return nil, err
		}
		return expr.Col(name), nil

	case "lit":
		v, err := parseLiteral(value)
		if err != nil {
			return nil, err
		}
		return expr.Lit(v), nil

	case "all":
		return expr.All(), nil

	case "as":
		var a aliasExpr
		if err := value.Decode(&a); err != nil {
			return nil, err
		}
		if a.Name == "" || a.Expr.Expr == nil {
			return nil, errors.New("alias needs expr and name")
		}
		return expr.As(a.Expr.Expr, a.Name), nil

	case "cast":
		var c castExpr
		if err := value.Decode(&c); err != nil {
			return nil, err
		}
		if c.Expr.Expr == nil {
			return nil, errors.New("cast needs expr and type")
		}
		dt, err := datatype.FromName(c.Type)
		if err != nil {
			return nil, err
		}
		return expr.CastTo(c.Expr.Expr, dt), nil

	case "except":
		var inner Expr
		if err := value.Decode(&inner); err != nil {
			return nil, err
		}
		return &expr.Except{Expr: inner.Expr}, nil
	}

	if op, ok := types.ParseAggOp(key); ok {
		var inner Expr
		if err := value.Decode(&inner); err != nil {
			return nil, err
		}
		return expr.AggOf(op, inner.Expr), nil
	}

	if op, ok := types.ParseBinaryOp(strings.ToUpper(key)); ok {
		var args []Expr
		if err := value.Decode(&args); err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, errors.Errorf("binary operator takes 2 arguments, got %d", len(args))
		}
		return expr.BinOp(args[0].Expr, op, args[1].Expr), nil
	}

	if op, ok := types.ParseUnaryOp(strings.ToUpper(key)); ok {
		var inner Expr
		if err := value.Decode(&inner); err != nil {
			return nil, err
		}
		return &expr.Unary{Op: op, Expr: inner.Expr}, nil
	}

	return nil, errors.Errorf("unknown expression %q", key)
}

func parseLiteral(node *yaml.Node) (any, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, errors.New("literal must be a scalar")
	}

	switch node.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!int":
		var v int64
		err := node.Decode(&v)
		return v, err
	case "!!float":
		var v float64
		err := node.Decode(&v)
		return v, err
	case "!!bool":
		var v bool
		err := node.Decode(&v)
		return v, err
	default:
		return node.Value, nil
	}
}

func unwrap(exprs []Expr) []expr.Expr {
	out := make([]expr.Expr, len(exprs))
	for i, e := range exprs {
		out[i] = e.Expr
	}
	return out
}
