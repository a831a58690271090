package nl2sql

import "fmt"

// BuildInput is what every builder receives once extraction is done.
type BuildInput struct {
	Description string
	Tables      []string
	Fields      []string
	// FieldSource tells how Fields were found, one of the Source constants.
	FieldSource string
	Options     Options
}

// specificFields reports whether the fields were named by the user rather than guessed.
func (in BuildInput) specificFields() bool {
	return len(in.Fields) > 0 && (in.FieldSource == SourceExplicit || in.FieldSource == SourcePhrase)
}

// Output is a built statement and the plan that explains it.
type Output struct {
	SQL  string
	Plan Plan
}

// Builder turns extracted entities into one kind of SQL statement.
type Builder interface {
	Build(in BuildInput) Output
}

type BuilderFunc func(in BuildInput) Output

func (f BuilderFunc) Build(in BuildInput) Output {
	return f(in)
}

var builders = map[Kind]Builder{
	KindSelect: BuilderFunc(buildSelect),
	KindInsert: BuilderFunc(buildInsert),
	KindUpdate: BuilderFunc(buildUpdate),
	KindDelete: BuilderFunc(buildDelete),
	KindCreate: BuilderFunc(buildCreate),
	KindAlter:  BuilderFunc(buildAlter),
	KindDrop:   BuilderFunc(buildDrop),
}

// BuilderFor returns the builder registered for kind.
func BuilderFor(kind Kind) (Builder, error) {
	builder, ok := builders[kind]
	if !ok {
		return nil, fmt.Errorf("no builder for statement kind %s", kind)
	}
	return builder, nil
}

// Build runs the builder for kind and appends the explanation block.
func Build(kind Kind, in BuildInput) (string, Plan, error) {
	builder, err := BuilderFor(kind)
	if err != nil {
		return "", Plan{}, err
	}
	in = in.normalized()
	out := builder.Build(in)
	out.Plan.Kind = kind
	out.Plan.Options = in.Options.Active(kind)
	return out.SQL + Explain(out.Plan), out.Plan, nil
}

func (in BuildInput) normalized() BuildInput {
	in.Description = normalize(in.Description)
	in.Tables = uniqueStrings(append([]string(nil), in.Tables...))
	if len(in.Tables) == 0 {
		in.Tables = []string{"utilisateurs"}
	}
	in.Fields = uniqueStrings(append([]string(nil), in.Fields...))
	if in.Options == nil {
		in.Options = Options{}
	}
	return in
}
