package usecase

import (
	"context"
	"fmt"
)

// Transaction is an ordered list of steps executed inside an already open
// database transaction. Steps run in the order they were added; the first
// failure stops the run and the caller's transaction is rolled back, so no
// compensation steps are needed.
type Transaction struct {
	operations []Operation
}

type Operation struct {
	Name string
	Fn   func(context.Context) error
}

func NewTransaction() *Transaction {
	return &Transaction{operations: []Operation{}}
}

func (t *Transaction) AddOperation(name string, fn func(context.Context) error) {
	t.operations = append(t.operations, Operation{name, fn})
}

func (t *Transaction) Len() int {
	return len(t.operations)
}

// Execute runs every operation, checking the context before each one so a
// deadline that expires mid-batch aborts the remainder.
func (t *Transaction) Execute(ctx context.Context) error {
	for i, op := range t.operations {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("operation '%s' not started: %w (%d of %d done)", op.Name, err, i, len(t.operations))
		}
		if err := op.Fn(ctx); err != nil {
			return fmt.Errorf("operation '%s' failed: %w (%d of %d done)", op.Name, err, i, len(t.operations))
		}
	}
	return nil
}
