// Package filter translates AIP-160 move journal filters into SQL.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/soimap/internal/platform/id"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// SQLCondition is a WHERE clause fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

type columnKind int

const (
	columnText columnKind = iota
	columnInt
	columnMillis
	columnMoveID
)

type column struct {
	name string
	kind columnKind
}

// moveColumns maps filter identifiers to position_moves columns.
var moveColumns = map[string]column{
	"id":           {name: "id", kind: columnMoveID},
	"entity_id":    {name: "entity_id", kind: columnText},
	"swap_with_id": {name: "swap_with_id", kind: columnText},
	"from_row":     {name: "from_row", kind: columnInt},
	"from_col":     {name: "from_col", kind: columnInt},
	"to_row":       {name: "to_row", kind: columnInt},
	"to_col":       {name: "to_col", kind: columnInt},
	"moved_at":     {name: "moved_at", kind: columnMillis},
}

// MoveDeclarations returns the identifiers a move filter may reference.
func MoveDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("id", filtering.TypeString),
		filtering.DeclareIdent("entity_id", filtering.TypeString),
		filtering.DeclareIdent("swap_with_id", filtering.TypeString),
		filtering.DeclareIdent("from_row", filtering.TypeInt),
		filtering.DeclareIdent("from_col", filtering.TypeInt),
		filtering.DeclareIdent("to_row", filtering.TypeInt),
		filtering.DeclareIdent("to_col", filtering.TypeInt),
		filtering.DeclareIdent("moved_at", filtering.TypeTimestamp),
	)
}

// ParseMoveFilter parses a filter such as
// `entity_id = "bar-a" AND moved_at > timestamp("2026-03-01T00:00:00Z")`.
// A blank filter yields an empty condition.
func ParseMoveFilter(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}
	decls, err := MoveDeclarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}
	return translate(parsed.CheckedExpr.GetExpr())
}

func translate(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", e.ExprKind)
	}
	args := call.CallExpr.Args
	switch fn := call.CallExpr.Function; fn {
	case "AND", "_&&_":
		return join("AND", args)
	case "OR", "_||_":
		return join("OR", args)
	case "=", "_==_":
		return compare(args, "=")
	case "!=", "_!=_":
		return compare(args, "!=")
	case "<", "_<_":
		return compare(args, "<")
	case "<=", "_<=_":
		return compare(args, "<=")
	case ">", "_>_":
		return compare(args, ">")
	case ">=", "_>=_":
		return compare(args, ">=")
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", fn)
	}
}

func join(op string, args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s requires 2 arguments", op)
	}
	left, err := translate(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	right, err := translate(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func compare(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	ident, ok := args[0].GetExprKind().(*expr.Expr_IdentExpr)
	if !ok {
		return SQLCondition{}, fmt.Errorf("expected field on the left of %s", op)
	}
	col, ok := moveColumns[ident.IdentExpr.GetName()]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field: %s", ident.IdentExpr.GetName())
	}
	value, err := operand(col, args[1])
	if err != nil {
		return SQLCondition{}, fmt.Errorf("%s: %w", ident.IdentExpr.GetName(), err)
	}
	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", col.name, op),
		Params: []any{value},
	}, nil
}

func operand(col column, e *expr.Expr) (any, error) {
	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_ConstExpr:
		switch value := kind.ConstExpr.GetConstantKind().(type) {
		case *expr.Constant_StringValue:
			switch col.kind {
			case columnMillis:
				return millis(value.StringValue)
			case columnMoveID:
				if !id.IsMoveID(value.StringValue) {
					return nil, fmt.Errorf("malformed move id %q", value.StringValue)
				}
			}
			return value.StringValue, nil
		case *expr.Constant_Int64Value:
			return value.Int64Value, nil
		case *expr.Constant_Uint64Value:
			return int64(value.Uint64Value), nil
		default:
			return nil, fmt.Errorf("unsupported constant type: %T", value)
		}
	case *expr.Expr_CallExpr:
		if kind.CallExpr.GetFunction() != "timestamp" || len(kind.CallExpr.GetArgs()) != 1 {
			return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.GetFunction())
		}
		arg, ok := kind.CallExpr.GetArgs()[0].GetConstExpr().GetConstantKind().(*expr.Constant_StringValue)
		if !ok {
			return nil, fmt.Errorf("timestamp argument must be a constant string")
		}
		return millis(arg.StringValue)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

// millis matches the journal's moved_at encoding.
func millis(value string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return t.UTC().UnixMilli(), nil
}
