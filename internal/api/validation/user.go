package validation

// ProvisionUserRequest mirrors the fields needed for user provisioning validation.
type ProvisionUserRequest struct {
	Username  string
	Email     string
	Password  string
	Role      string
	CompanyID string
}

// ValidateProvisionUserRequest validates the fields of a provision request.
// Role and company consistency is left to the user aggregate.
func ValidateProvisionUserRequest(req ProvisionUserRequest) []FieldError {
	var errs []FieldError
	errs = requireName(errs, "username", req.Username)
	errs = requireEmail(errs, req.Email)
	errs = requirePassword(errs, req.Password)
	errs = requireRole(errs, req.Role)
	errs = optionalUUID(errs, "companyId", req.CompanyID)
	return errs
}

// ValidateChangeRoleRequest validates a role change payload.
func ValidateChangeRoleRequest(r string) []FieldError {
	return requireRole(nil, r)
}

// ValidateAssignCompanyRequest validates a company assignment payload.
func ValidateAssignCompanyRequest(companyID string) []FieldError {
	if companyID == "" {
		return []FieldError{{Field: "companyId", Message: "companyId is required"}}
	}
	return optionalUUID(nil, "companyId", companyID)
}
