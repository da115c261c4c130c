package action

import (
	"context"

	"nex/internal/calc"
	"nex/internal/nlu"
)

func Calculate(_ context.Context, req Request) (string, error) {
	expr := req.Slots.Get(nlu.SlotExpr)
	if expr == "" {
		return "What should I calculate?", nil
	}

	v, err := calc.Eval(expr)
	if err != nil {
		return "I couldn't calculate that.", nil
	}

	return "The answer is " + calc.Format(v), nil
}
