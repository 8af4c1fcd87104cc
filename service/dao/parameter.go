package dao

// Parameter names understood by list criteria.
const (
	ParamStatus   = "Status"
	ParamApprover = "ApproverEmail"
)

// Parameter is a named list criterion; Value is a string or []string.
type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
