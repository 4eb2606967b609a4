package result

// GenericCode is the entity-independent outcome reported as rv_status_code.
type GenericCode int

const (
	InformationRetrieved GenericCode = 1001
	ObjectCreated        GenericCode = 1010
	ObjectUpdated        GenericCode = 1008
	ObjectUnchanged      GenericCode = 1009
	ObjectDeleted        GenericCode = 1012
	ObjectExists         GenericCode = 1017
	InvalidId            GenericCode = 1005
	Invalid              GenericCode = 1006
	DoesNotExist         GenericCode = 1004
)

const (
	IncorrectArguments   GenericCode = 4000
	PermissionDenied     GenericCode = 4001
	AuthenticationFailed GenericCode = 4002
	FailedToCreateObject GenericCode = 4100
	FailedToUpdateObject GenericCode = 4101
	FailedToDeleteObject GenericCode = 4102
	SomethingBroke       GenericCode = 4500
)

// HTTPStatus maps a generic outcome onto its HTTP status class.
func (c GenericCode) HTTPStatus() int {
	switch c {
	case InformationRetrieved, ObjectCreated, ObjectUpdated, ObjectUnchanged, ObjectDeleted:
		return 200
	case IncorrectArguments:
		return 400
	case AuthenticationFailed:
		return 401
	case PermissionDenied:
		return 403
	case SomethingBroke:
		return 500
	}
	return 409
}

// Code is the entity-specific outcome reported as vfense_status_code.
type Code int

// Customer outcomes
const (
	CustomerCreated           Code = 13000
	CustomerUpdated           Code = 13001
	CustomerUnchanged         Code = 13002
	CustomerDeleted           Code = 13003
	CustomersAddedToUser      Code = 13004
	CustomersUnchangedForUser Code = 13005
	CustomersRemovedFromUser  Code = 13006
)

// Customer failures
const (
	CustomerExists             Code = 13100
	InvalidCustomerName        Code = 13101
	CustomerDoesNotExist       Code = 13102
	UsersExistForCustomer      Code = 13103
	UsersDoNotExistForCustomer Code = 13104
	FailedToRemoveCustomer     Code = 13105
)

// User outcomes
const (
	UserCreated              Code = 14000
	UserUpdated              Code = 14001
	UserUnchanged            Code = 14002
	UserDeleted              Code = 14003
	PasswordChanged          Code = 14004
	UserToggled              Code = 14005
	UsersAddedToCustomer     Code = 14006
	UsersRemovedFromCustomer Code = 14007
)

// User failures
const (
	UserNameDoesNotExist     Code = 14100
	UserNameExists           Code = 14101
	InvalidUserName          Code = 14102
	InvalidPassword          Code = 14103
	InvalidEmail             Code = 14104
	AdminUserCannotBeRemoved Code = 14105
	FailedToRemoveUser       Code = 14106
	LastCustomerForUser      Code = 14107
)

// Group outcomes
const (
	GroupCreated           Code = 12000
	GroupDeleted           Code = 12001
	GroupsAddedToUser      Code = 12002
	GroupsUnchangedForUser Code = 12003
	GroupsRemovedFromUser  Code = 12004
)

// Group failures
const (
	InvalidGroupId          Code = 12100
	GroupExists             Code = 12101
	UsersExistForGroup      Code = 12102
	GroupsDoNotExistForUser Code = 12103
	InvalidGroupName        Code = 12104
)

// Permission outcomes
const (
	PermissionGranted       Code = 11000
	PermissionDeniedForUser Code = 11100
	InvalidPermission       Code = 11101
)

// Session outcomes
const (
	LoginSucceeded  Code = 15000
	LogoutSucceeded Code = 15001
	LoginFailed     Code = 15100
	Unauthenticated Code = 15101
)

// Codes without an entity
const (
	NoCode              Code = 0
	InformationReturned Code = 10000
	InternalError       Code = 10500
	BadArguments        Code = 10400
)
