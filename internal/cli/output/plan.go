package output

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

// PlanOutput is the JSON form of a plan.
type PlanOutput struct {
	ID         string               `json:"id,omitempty"`
	Source     string               `json:"source"`
	Document   string               `json:"document"`
	Operations []dbobject.Operation `json:"operations"`
	Statements []string             `json:"statements"`
}

// SQLScript joins the rendered statements of ops into a script.
func SQLScript(ops []dbobject.Operation) string {
	var b strings.Builder
	for i, op := range ops {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(op.SQL())
		b.WriteString(";\n")
	}
	return b.String()
}

// Plan renders a list of operations in the effective mode.
func (r *Renderer) Plan(plan PlanOutput) error {
	if plan.Operations == nil {
		plan.Operations = []dbobject.Operation{}
	}

	switch r.EffectiveMode() {
	case ModeJSON:
		plan.Statements = make([]string, len(plan.Operations))
		for i, op := range plan.Operations {
			plan.Statements[i] = op.SQL()
		}
		return r.JSON(plan)
	case ModeSQL:
		if len(plan.Operations) == 0 {
			r.Println("-- no changes")
			return nil
		}
		r.Printf("-- %s -> %s\n\n", plan.Source, plan.Document)
		r.Printf("%s", SQLScript(plan.Operations))
		return nil
	default:
		r.Header(1, fmt.Sprintf("Plan: %s -> %s", plan.Source, plan.Document))
		if len(plan.Operations) == 0 {
			r.Success("No changes. The database matches the document.")
			return nil
		}
		rows := make([][]string, len(plan.Operations))
		for i, op := range plan.Operations {
			rows[i] = []string{fmt.Sprintf("%d", i+1), string(op.Kind), op.Target(), detail(op)}
		}
		r.Table([]string{"#", "Operation", "Object", "Detail"}, rows)
		r.Println(summary(plan.Operations))
		if plan.ID != "" {
			r.Muted("saved as plan " + plan.ID)
		}
		return nil
	}
}

func detail(op dbobject.Operation) string {
	switch op.Kind {
	case dbobject.OpCreateDomain:
		return op.BaseType
	case dbobject.OpAlterSetDefault:
		return op.Default
	case dbobject.OpAddConstraint, dbobject.OpDropConstraint:
		return op.Constraint.Name
	case dbobject.OpSetOwner:
		return op.Owner
	case dbobject.OpCreateCast:
		if op.Function != "" {
			return fmt.Sprintf("%s, %s", op.Context, op.Function)
		}
		return fmt.Sprintf("%s, %s", op.Context, op.Method)
	case dbobject.OpSetComment, dbobject.OpCommentCast:
		if op.Comment == nil {
			return "(cleared)"
		}
		return *op.Comment
	}
	return ""
}

func summary(ops []dbobject.Operation) string {
	var creates, drops, alters int
	for _, op := range ops {
		switch op.Kind {
		case dbobject.OpCreateSchema, dbobject.OpCreateDomain, dbobject.OpCreateCast:
			creates++
		case dbobject.OpDropSchema, dbobject.OpDropDomain, dbobject.OpDropCast:
			drops++
		default:
			alters++
		}
	}
	return fmt.Sprintf("%d operations: %d to create, %d to drop, %d to alter", len(ops), creates, drops, alters)
}
