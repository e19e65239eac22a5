package locator

import "strings"

// Vendor is the markup signature of a third-party select widget. New
// libraries are supported by adding a row.
type Vendor struct {
	Name string
	// Trigger is clicked to open the widget.
	Trigger string
	// Panel is the popup holding the options once open.
	Panel string
	// Option is one entry inside Panel.
	Option string
	// Selected displays the current choice.
	Selected string
	// Search is the filter input, for widgets that have one.
	Search string
}

// Vendors is the signature table, most common first
var Vendors = []Vendor{
	{
		Name:     "ant",
		Trigger:  ".ant-select",
		Panel:    ".ant-select-dropdown",
		Option:   ".ant-select-item-option",
		Selected: ".ant-select-selection-item",
		Search:   ".ant-select-selection-search-input",
	},
	{
		Name:     "element",
		Trigger:  ".el-select",
		Panel:    ".el-select-dropdown, .el-select__popper",
		Option:   ".el-select-dropdown__item",
		Selected: ".el-select__selected-item, .el-select .el-input__inner",
		Search:   ".el-select__input",
	},
	{
		Name:     "react-select",
		Trigger:  ".react-select__control",
		Panel:    ".react-select__menu",
		Option:   ".react-select__option",
		Selected: ".react-select__single-value",
		Search:   ".react-select__input input",
	},
	{
		Name:     "mui",
		Trigger:  ".MuiSelect-select",
		Panel:    ".MuiMenu-paper, .MuiPopover-paper, .MuiAutocomplete-popper",
		Option:   ".MuiMenuItem-root, .MuiAutocomplete-option",
		Selected: ".MuiSelect-select",
		Search:   ".MuiAutocomplete-input",
	},
	{
		Name:     "prime",
		Trigger:  ".p-dropdown",
		Panel:    ".p-dropdown-panel",
		Option:   ".p-dropdown-item",
		Selected: ".p-dropdown-label",
		Search:   ".p-dropdown-filter",
	},
	{
		Name:     "tdesign",
		Trigger:  ".t-select",
		Panel:    ".t-select__dropdown",
		Option:   ".t-select-option",
		Selected: ".t-select .t-input__inner",
		Search:   ".t-select .t-input__inner",
	},
	{
		Name:     "arco",
		Trigger:  ".arco-select-view",
		Panel:    ".arco-select-popup",
		Option:   ".arco-select-option",
		Selected: ".arco-select-view-value",
		Search:   ".arco-select-view-input",
	},
	{
		Name:     "iview",
		Trigger:  ".ivu-select-selection",
		Panel:    ".ivu-select-dropdown",
		Option:   ".ivu-select-item",
		Selected: ".ivu-select-selected-value",
		Search:   ".ivu-select-input",
	},
	{
		Name:     "vuetify",
		Trigger:  ".v-select",
		Panel:    ".v-menu__content, .v-overlay__content",
		Option:   ".v-list-item",
		Selected: ".v-select__selection",
		Search:   ".v-select input",
	},
	{
		Name:     "select2",
		Trigger:  ".select2-selection",
		Panel:    ".select2-dropdown",
		Option:   ".select2-results__option",
		Selected: ".select2-selection__rendered",
		Search:   ".select2-search__field",
	},
}

// VendorCSS joins one field of every vendor into a single selector list
func VendorCSS(field func(Vendor) string) string {
	parts := make([]string, 0, len(Vendors))
	for _, v := range Vendors {
		if s := field(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
