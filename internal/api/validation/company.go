package validation

// ValidateCreateCompanyRequest validates the fields of a create company request.
func ValidateCreateCompanyRequest(name string) []FieldError {
	return requireName(nil, "name", name)
}
