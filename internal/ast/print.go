package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dump returns a human-readable representation of the tree rooted at node.
func Dump(node Node) string {
	var sb strings.Builder
	fprintNode(&sb, node, 0)
	return sb.String()
}

// DumpUnit dumps every top-level node of a compilation unit in order.
func DumpUnit(nodes []Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		fprintNode(&sb, n, 0)
	}
	return sb.String()
}

// FormatType renders a type annotation the way it would be written in source.
func FormatType(tn TypeNode) string {
	switch t := tn.(type) {
	case nil:
		return "()"
	case *NamedType:
		s := strings.Join(t.Path, ".")
		if len(t.Args) > 0 {
			args := make([]string, len(t.Args))
			for i, a := range t.Args {
				args[i] = FormatType(a)
			}
			s += "<" + strings.Join(args, ", ") + ">"
		}
		return s
	case *ArrayType:
		if t.Sized {
			return fmt.Sprintf("[%s; %d]", FormatType(t.Elem), t.Len)
		}
		return "[" + FormatType(t.Elem) + "]"
	case *TupleType:
		elems := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = FormatType(e)
		}
		return "(" + strings.Join(elems, ", ") + ")"
	case *FuncType:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = FormatType(p)
		}
		return "fn(" + strings.Join(params, ", ") + ") -> " + FormatType(t.Result)
	case *RefType:
		s := "&"
		if t.Lifetime != "" {
			s += "'" + t.Lifetime + " "
		}
		if t.Mutable {
			s += "mut "
		}
		return s + FormatType(t.Inner)
	default:
		return fmt.Sprintf("%T", tn)
	}
}

func fprintBody(w io.Writer, label string, body []Node, indent int) {
	ind := strings.Repeat("  ", indent)
	fmt.Fprintf(w, "%s%s:\n", ind, label)
	for _, n := range body {
		fprintNode(w, n, indent+1)
	}
}

func fprintNode(w io.Writer, n Node, indent int) {
	if n == nil {
		return
	}

	ind := strings.Repeat("  ", indent)

	switch n := n.(type) {
	case *BadNode:
		fmt.Fprintf(w, "%sBadNode %q\n", ind, n.Msg)

	case *VarDecl:
		mutStr := ""
		if n.Mutable {
			mutStr = " mut"
		}
		fmt.Fprintf(w, "%sVarDecl%s name=%s", ind, mutStr, n.Name)
		if n.Type != nil {
			fmt.Fprintf(w, " type=%s", FormatType(n.Type))
		}
		fmt.Fprintln(w)
		if n.Value != nil {
			fprintNode(w, n.Value, indent+1)
		}

	case *ConstDecl:
		fmt.Fprintf(w, "%sConstDecl name=%s type=%s\n", ind, n.Name, FormatType(n.Type))
		fprintNode(w, n.Value, indent+1)

	case *FuncDecl:
		pubStr := ""
		if n.Visibility == Public {
			pubStr = " pub"
		}
		fmt.Fprintf(w, "%sFuncDecl%s name=%s", ind, pubStr, n.Name)
		if len(n.TypeParams) > 0 {
			names := make([]string, len(n.TypeParams))
			for i, tp := range n.TypeParams {
				names[i] = tp.Name
			}
			fmt.Fprintf(w, " generics=<%s>", strings.Join(names, ", "))
		}
		fmt.Fprintf(w, " result=%s\n", FormatType(n.Result))
		for _, p := range n.Params {
			fprintNode(w, p, indent+1)
		}
		if len(n.Body) > 0 {
			fprintBody(w, "Body", n.Body, indent+1)
		}

	case *Param:
		mutStr := ""
		if n.Mutable {
			mutStr = " mut"
		}
		fmt.Fprintf(w, "%sParam%s name=%s type=%s\n", ind, mutStr, n.Name, FormatType(n.Type))

	case *StructDecl:
		fmt.Fprintf(w, "%sStructDecl %s name=%s\n", ind, n.Visibility, n.Name)
		for _, f := range n.Fields {
			fprintNode(w, f, indent+1)
		}

	case *ClassDecl:
		fmt.Fprintf(w, "%sClassDecl %s name=%s\n", ind, n.Visibility, n.Name)
		for _, f := range n.Fields {
			fprintNode(w, f, indent+1)
		}
		for _, m := range n.Methods {
			fprintNode(w, m, indent+1)
		}

	case *FieldDecl:
		fmt.Fprintf(w, "%sField %s name=%s type=%s\n", ind, n.Visibility, n.Name, FormatType(n.Type))

	case *EnumDecl:
		fmt.Fprintf(w, "%sEnumDecl %s name=%s\n", ind, n.Visibility, n.Name)
		for _, v := range n.Variants {
			fprintNode(w, v, indent+1)
		}

	case *VariantDecl:
		if n.Type != nil {
			fmt.Fprintf(w, "%sVariant name=%s payload=%s\n", ind, n.Name, FormatType(n.Type))
		} else {
			fmt.Fprintf(w, "%sVariant name=%s\n", ind, n.Name)
		}

	case *TraitDecl:
		fmt.Fprintf(w, "%sTraitDecl %s name=%s\n", ind, n.Visibility, n.Name)
		for _, m := range n.Methods {
			fprintNode(w, m, indent+1)
		}

	case *ImplDecl:
		if n.Trait != nil {
			fmt.Fprintf(w, "%sImplDecl trait=%s target=%s\n", ind, strings.Join(n.Trait, "."), FormatType(n.Target))
		} else {
			fmt.Fprintf(w, "%sImplDecl target=%s\n", ind, FormatType(n.Target))
		}
		for _, m := range n.Methods {
			fprintNode(w, m, indent+1)
		}

	case *ModuleDecl:
		fmt.Fprintf(w, "%sModuleDecl %s name=%s\n", ind, n.Visibility, n.Name)
		for _, item := range n.Body {
			fprintNode(w, item, indent+1)
		}

	case *UseDecl:
		aliasStr := n.Alias
		if aliasStr == "" {
			aliasStr = "<default>"
		}
		fmt.Fprintf(w, "%sUseDecl path=%s alias=%s\n", ind, strings.Join(n.Path, "."), aliasStr)

	case *ExprStmt:
		fmt.Fprintf(w, "%sExprStmt\n", ind)
		fprintNode(w, n.X, indent+1)

	case *ReturnStmt:
		fmt.Fprintf(w, "%sReturnStmt\n", ind)
		if n.Value != nil {
			fprintNode(w, n.Value, indent+1)
		}

	case *IfStmt:
		fmt.Fprintf(w, "%sIfStmt\n", ind)
		fmt.Fprintf(w, "%s  Cond:\n", ind)
		fprintNode(w, n.Cond, indent+2)
		fprintBody(w, "Then", n.Then, indent+1)
		if n.Else != nil {
			fprintBody(w, "Else", n.Else, indent+1)
		}

	case *WhileStmt:
		fmt.Fprintf(w, "%sWhileStmt\n", ind)
		fmt.Fprintf(w, "%s  Cond:\n", ind)
		fprintNode(w, n.Cond, indent+2)
		fprintBody(w, "Body", n.Body, indent+1)

	case *ForStmt:
		fmt.Fprintf(w, "%sForStmt var=%s\n", ind, n.Var)
		fmt.Fprintf(w, "%s  Iter:\n", ind)
		fprintNode(w, n.Iter, indent+2)
		fprintBody(w, "Body", n.Body, indent+1)

	case *LoopStmt:
		fmt.Fprintf(w, "%sLoopStmt\n", ind)
		fprintBody(w, "Body", n.Body, indent+1)

	case *BreakStmt:
		fmt.Fprintf(w, "%sBreakStmt\n", ind)

	case *ContinueStmt:
		fmt.Fprintf(w, "%sContinueStmt\n", ind)

	case *MatchStmt:
		fmt.Fprintf(w, "%sMatchStmt\n", ind)
		fprintNode(w, n.Scrutinee, indent+1)
		for _, arm := range n.Arms {
			fprintNode(w, arm, indent+1)
		}

	case *MatchArm:
		fmt.Fprintf(w, "%sArm\n", ind)
		fprintNode(w, n.Pattern, indent+1)
		if n.Guard != nil {
			fmt.Fprintf(w, "%s  Guard:\n", ind)
			fprintNode(w, n.Guard, indent+2)
		}
		fprintBody(w, "Body", n.Body, indent+1)

	case *BlockStmt:
		fmt.Fprintf(w, "%sBlockStmt\n", ind)
		for _, s := range n.Body {
			fprintNode(w, s, indent+1)
		}

	case *Ident:
		fmt.Fprintf(w, "%sIdent %s\n", ind, n.Name)

	case *IntLit:
		fmt.Fprintf(w, "%sIntLit %d\n", ind, n.Value)

	case *FloatLit:
		fmt.Fprintf(w, "%sFloatLit %s\n", ind, strconv.FormatFloat(n.Value, 'g', -1, 64))

	case *BoolLit:
		fmt.Fprintf(w, "%sBoolLit %t\n", ind, n.Value)

	case *CharLit:
		fmt.Fprintf(w, "%sCharLit %q\n", ind, n.Value)

	case *StringLit:
		fmt.Fprintf(w, "%sStringLit %q\n", ind, n.Value)

	case *UnitLit:
		fmt.Fprintf(w, "%sUnitLit\n", ind)

	case *BinaryExpr:
		fmt.Fprintf(w, "%sBinaryExpr op=%s\n", ind, n.Op)
		fprintNode(w, n.Left, indent+1)
		fprintNode(w, n.Right, indent+1)

	case *UnaryExpr:
		fmt.Fprintf(w, "%sUnaryExpr op=%s\n", ind, n.Op)
		fprintNode(w, n.X, indent+1)

	case *CallExpr:
		fmt.Fprintf(w, "%sCallExpr\n", ind)
		fmt.Fprintf(w, "%s  Callee:\n", ind)
		fprintNode(w, n.Callee, indent+2)
		if len(n.Args) > 0 {
			fmt.Fprintf(w, "%s  Args:\n", ind)
			for _, a := range n.Args {
				fprintNode(w, a, indent+2)
			}
		}

	case *MethodCallExpr:
		fmt.Fprintf(w, "%sMethodCallExpr name=%s\n", ind, n.Name)
		fprintNode(w, n.Receiver, indent+1)
		for _, a := range n.Args {
			fprintNode(w, a, indent+1)
		}

	case *MemberExpr:
		fmt.Fprintf(w, "%sMemberExpr name=%s\n", ind, n.Name)
		fprintNode(w, n.X, indent+1)

	case *PathExpr:
		fmt.Fprintf(w, "%sPathExpr %s\n", ind, strings.Join(n.Segments, "."))

	case *IndexExpr:
		fmt.Fprintf(w, "%sIndexExpr\n", ind)
		fprintNode(w, n.X, indent+1)
		fprintNode(w, n.Index, indent+1)

	case *ArrayLit:
		fmt.Fprintf(w, "%sArrayLit len=%d\n", ind, len(n.Elems))
		for _, e := range n.Elems {
			fprintNode(w, e, indent+1)
		}

	case *TupleLit:
		fmt.Fprintf(w, "%sTupleLit len=%d\n", ind, len(n.Elems))
		for _, e := range n.Elems {
			fprintNode(w, e, indent+1)
		}

	case *StructLit:
		fmt.Fprintf(w, "%sStructLit type=%s\n", ind, n.TypeName)
		for _, f := range n.Fields {
			fmt.Fprintf(w, "%s  Field %s:\n", ind, f.Name)
			fprintNode(w, f.Value, indent+2)
		}

	case *CastExpr:
		fmt.Fprintf(w, "%sCastExpr as=%s\n", ind, FormatType(n.Type))
		fprintNode(w, n.X, indent+1)

	case TypeNode:
		fmt.Fprintf(w, "%sType %s\n", ind, FormatType(n))

	case *WildcardPattern:
		fmt.Fprintf(w, "%sWildcardPattern\n", ind)

	case *LiteralPattern:
		fmt.Fprintf(w, "%sLiteralPattern\n", ind)
		fprintNode(w, n.Value, indent+1)

	case *BindingPattern:
		fmt.Fprintf(w, "%sBindingPattern name=%s\n", ind, n.Name)

	case *TuplePattern:
		fmt.Fprintf(w, "%sTuplePattern\n", ind)
		for _, e := range n.Elems {
			fprintNode(w, e, indent+1)
		}

	case *VariantPattern:
		fmt.Fprintf(w, "%sVariantPattern %s\n", ind, strings.Join(n.Path, "."))
		for _, e := range n.Elems {
			fprintNode(w, e, indent+1)
		}

	default:
		fmt.Fprintf(w, "%s<unknown node %T>\n", ind, n)
	}
}
