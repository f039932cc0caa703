package types

import "fmt"

// UnaryOp denotes the kind of unary expression to perform.
type UnaryOp int

// Recognized values of [UnaryOp].
const (
	// UnaryOpInvalid indicates an invalid unary operation.
	UnaryOpInvalid UnaryOp = iota

	UnaryOpNot        // Logical NOT.
	UnaryOpIsNull     // True where the value is null.
	UnaryOpIsNotNull  // True where the value is not null.
	UnaryOpReverse    // Reverses the order of values.
	UnaryOpDuplicated // True where the value occurs more than once.
	UnaryOpIsUnique   // True where the value occurs exactly once.
	UnaryOpExplode    // Flattens a list column into rows.
)

var unaryOpStrings = map[UnaryOp]string{
	UnaryOpInvalid: "invalid",

	UnaryOpNot:        "NOT",
	UnaryOpIsNull:     "IS_NULL",
	UnaryOpIsNotNull:  "IS_NOT_NULL",
	UnaryOpReverse:    "REVERSE",
	UnaryOpDuplicated: "DUPLICATED",
	UnaryOpIsUnique:   "IS_UNIQUE",
	UnaryOpExplode:    "EXPLODE",
}

// String returns the string representation of the UnaryOp.
func (op UnaryOp) String() string {
	if s, ok := unaryOpStrings[op]; ok {
		return s
	}
	return fmt.Sprintf("UnaryOp(%d)", op)
}

// IsPredicate reports whether op always produces a boolean.
func (op UnaryOp) IsPredicate() bool {
	switch op {
	case UnaryOpNot, UnaryOpIsNull, UnaryOpIsNotNull, UnaryOpDuplicated, UnaryOpIsUnique:
		return true
	}
	return false
}

// ParseUnaryOp returns the UnaryOp for its string representation.
func ParseUnaryOp(s string) (UnaryOp, bool) {
	for op, name := range unaryOpStrings {
		if name == s && op != UnaryOpInvalid {
			return op, true
		}
	}
	return UnaryOpInvalid, false
}

// BinaryOp denotes the kind of binary expression to perform.
type BinaryOp int

// Recognized values of [BinaryOp].
const (
	// BinaryOpInvalid indicates an invalid binary operation.
	BinaryOpInvalid BinaryOp = iota

	BinaryOpEq    // Equality comparison (==).
	BinaryOpNotEq // Inequality comparison (!=).
	BinaryOpLt    // Less than comparison (<).
	BinaryOpLtEq  // Less than or equal comparison (<=).
	BinaryOpGt    // Greater than comparison (>).
	BinaryOpGtEq  // Greater than or equal comparison (>=).
	BinaryOpAnd   // Logical AND operation (&&).
	BinaryOpOr    // Logical OR operation (||).
	BinaryOpXor   // Logical XOR operation (^).

	BinaryOpAdd // Addition operation (+).
	BinaryOpSub // Subtraction operation (-).
	BinaryOpMul // Multiplication operation (*).
	BinaryOpDiv // Division operation (/).
	BinaryOpMod // Modulo operation (%).

	BinaryOpLike    // String pattern matching.
	BinaryOpNotLike // String pattern non-matching.
)

var binaryOpStrings = map[BinaryOp]string{
	BinaryOpInvalid: "invalid",

	BinaryOpEq:    "EQ",
	BinaryOpNotEq: "NEQ",
	BinaryOpLt:    "LT",
	BinaryOpLtEq:  "LTE",
	BinaryOpGt:    "GT",
	BinaryOpGtEq:  "GTE",
	BinaryOpAnd:   "AND",
	BinaryOpOr:    "OR",
	BinaryOpXor:   "XOR",

	BinaryOpAdd: "ADD",
	BinaryOpSub: "SUB",
	BinaryOpMul: "MUL",
	BinaryOpDiv: "DIV",
	BinaryOpMod: "MOD",

	BinaryOpLike:    "LIKE",
	BinaryOpNotLike: "NOT_LIKE",
}

// String returns a human-readable representation of the binary operation.
func (op BinaryOp) String() string {
	if s, ok := binaryOpStrings[op]; ok {
		return s
	}
	return fmt.Sprintf("BinaryOp(%d)", op)
}

// IsPredicate reports whether op produces a boolean result.
func (op BinaryOp) IsPredicate() bool {
	switch op {
	case BinaryOpEq, BinaryOpNotEq, BinaryOpLt, BinaryOpLtEq, BinaryOpGt, BinaryOpGtEq,
		BinaryOpAnd, BinaryOpOr, BinaryOpXor, BinaryOpLike, BinaryOpNotLike:
		return true
	}
	return false
}

// ParseBinaryOp returns the BinaryOp for its string representation, matched
// case-sensitively against [BinaryOp.String].
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for op, name := range binaryOpStrings {
		if name == s && op != BinaryOpInvalid {
			return op, true
		}
	}
	return BinaryOpInvalid, false
}

// AggOp denotes the kind of aggregation to perform.
type AggOp int

// Recognized values of [AggOp].
const (
	AggOpInvalid AggOp = iota

	AggOpMax
	AggOpMin
	AggOpMean
	AggOpMedian
	AggOpNUnique
	AggOpFirst
	AggOpLast
	AggOpList
	AggOpCount
	AggOpQuantile
	AggOpSum
	AggOpStd
	AggOpVar
	AggOpGroups
)

var aggOpStrings = map[AggOp]string{
	AggOpInvalid: "invalid",

	AggOpMax:      "max",
	AggOpMin:      "min",
	AggOpMean:     "mean",
	AggOpMedian:   "median",
	AggOpNUnique:  "n_unique",
	AggOpFirst:    "first",
	AggOpLast:     "last",
	AggOpList:     "agg_list",
	AggOpCount:    "count",
	AggOpQuantile: "quantile",
	AggOpSum:      "sum",
	AggOpStd:      "std",
	AggOpVar:      "var",
	AggOpGroups:   "groups",
}

// String returns the name of the aggregation. The name is also the suffix of
// aggregated column names.
func (op AggOp) String() string {
	if s, ok := aggOpStrings[op]; ok {
		return s
	}
	return fmt.Sprintf("AggOp(%d)", op)
}

// ParseAggOp returns the AggOp for its name.
func ParseAggOp(s string) (AggOp, bool) {
	for op, name := range aggOpStrings {
		if name == s && op != AggOpInvalid {
			return op, true
		}
	}
	return AggOpInvalid, false
}

// JoinType denotes how rows of two relations are matched.
type JoinType int

// Recognized values of [JoinType].
const (
	JoinTypeInner JoinType = iota
	JoinTypeLeft
	JoinTypeOuter
)

// String returns the name of the join type.
func (t JoinType) String() string {
	switch t {
	case JoinTypeInner:
		return "inner"
	case JoinTypeLeft:
		return "left"
	case JoinTypeOuter:
		return "outer"
	default:
		return fmt.Sprintf("JoinType(%d)", t)
	}
}

// ParseJoinType returns the JoinType for its name.
func ParseJoinType(s string) (JoinType, bool) {
	switch s {
	case "inner", "":
		return JoinTypeInner, true
	case "left":
		return JoinTypeLeft, true
	case "outer":
		return JoinTypeOuter, true
	}
	return JoinTypeInner, false
}
