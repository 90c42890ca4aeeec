package models

// Category is a (main, sub, sub-sub) classification triple from the fixed
// taxonomy. A product either has no category or a triple that exists in the
// taxonomy table; free-form triples never enter the data model.
type Category struct {
	Main   string `json:"main"    validate:"required"`
	Sub    string `json:"sub"     validate:"required"`
	SubSub string `json:"sub_sub" validate:"required"`
}

func (c Category) String() string {
	return c.Main + " > " + c.Sub + " > " + c.SubSub
}

// Zero reports whether the triple is unset.
func (c Category) Zero() bool {
	return c.Main == "" && c.Sub == "" && c.SubSub == ""
}
