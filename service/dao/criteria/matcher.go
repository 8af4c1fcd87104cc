package criteria

import (
	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/service/dao"
)

// FilterByValue reports whether actual satisfies every parameter called name.
// Parameters with other names are ignored.
func FilterByValue(name, actual string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != name {
			continue
		}
		switch expected := parameter.Value.(type) {
		case string:
			if expected != "" && actual != expected {
				return false
			}
		case []string:
			if len(expected) == 0 {
				continue
			}
			matched := false
			for _, candidate := range expected {
				if actual == candidate {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}

// MatchRequest applies status and approver criteria to an access request.
func MatchRequest(r *access.Request, parameters []*dao.Parameter) bool {
	if !FilterByValue(dao.ParamStatus, string(r.Status), parameters) {
		return false
	}
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != dao.ParamApprover {
			continue
		}
		if email, ok := parameter.Value.(string); ok && email != "" && !r.IsApprover(email) {
			return false
		}
	}
	return true
}
