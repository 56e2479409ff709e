// internal/domain/cart/validator.go
package cart

import (
	"fmt"
	"strings"
)

// Issue types
const (
	IssueRequired       = "required"
	IssueInvalid        = "invalid"
	IssueRecommendation = "recommendation"
)

// ValidationIssue is one problem found in a cart
type ValidationIssue struct {
	ItemID  string `json:"item_id,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ValidationResult reports whether a cart is fit for export
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// Validate inspects c without modifying it
func Validate(c *Cart) ValidationResult {
	result := ValidationResult{
		Errors:   []ValidationIssue{},
		Warnings: []ValidationIssue{},
	}

	for _, item := range c.Items {
		if strings.TrimSpace(item.ProductName) == "" {
			result.Errors = append(result.Errors, ValidationIssue{
				ItemID:  item.ID,
				Field:   "product_name",
				Message: "Product name is required",
				Type:    IssueRequired,
			})
		}
		if item.Quantity <= 0 {
			result.Errors = append(result.Errors, ValidationIssue{
				ItemID:  item.ID,
				Field:   "quantity",
				Message: "Quantity must be greater than zero",
				Type:    IssueInvalid,
			})
		}
		if item.BasePrice <= 0 {
			result.Errors = append(result.Errors, ValidationIssue{
				ItemID:  item.ID,
				Field:   "base_price",
				Message: "Price must be greater than zero",
				Type:    IssueInvalid,
			})
		}
		for _, opt := range item.Options {
			if opt.Required && isEmptyValue(opt.Value) {
				result.Errors = append(result.Errors, ValidationIssue{
					ItemID:  item.ID,
					Field:   "option_" + opt.ID,
					Message: fmt.Sprintf("Option %q is required", opt.Name),
					Type:    IssueRequired,
				})
			}
		}
	}

	if c.Status != StatusDraft && (c.ClientInfo == nil || strings.TrimSpace(c.ClientInfo.Name) == "") {
		result.Warnings = append(result.Warnings, ValidationIssue{
			Field:   "client_info",
			Message: "Client name is recommended",
			Type:    IssueRecommendation,
		})
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case bool:
		return !val
	case float64:
		return val == 0
	case int:
		return val == 0
	}
	return false
}
