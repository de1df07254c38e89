package engine

import "github.com/rfidlib/circulation-engine/docstore"

// Document layout written by the issue desk and the gates.
//
//	LibraryItems/{Books|Journals|Articles}/{serial}   {name, addedDate}
//	LibraryRecords/{roll}/{serial}                     {Book, Name, Issued DateTime, Returned DateTime, finePaid, ReturnStatus}
//	Analytics/StudentsPresentCount                     number
//	Analytics/StudentsPresentList/{roll}               {Name, Branch}
//	Analytics/DailyEntryLog/{YYYY-MM-DD}/{key}         {Event, Roll, Name, Branch, DateTime}
//	Students/{roll}                                    {Name, Branch, Logs/{key}}
const (
	PathCatalog   docstore.Path = "LibraryItems"
	PathRecords   docstore.Path = "LibraryRecords"
	PathAnalytics docstore.Path = "Analytics"
	PathStudents  docstore.Path = "Students"
)

const (
	KeyPresentCount = "StudentsPresentCount"
	KeyPresentList  = "StudentsPresentList"
	KeyDailyLog     = "DailyEntryLog"
	KeyLogs         = "Logs"
)

const (
	FieldItemName  = "name"
	FieldAddedDate = "addedDate"

	FieldBook         = "Book"
	FieldName         = "Name"
	FieldBranch       = "Branch"
	FieldRoll         = "Roll"
	FieldIssued       = "Issued DateTime"
	FieldReturned     = "Returned DateTime"
	FieldFinePaid     = "finePaid"
	FieldReturnStatus = "ReturnStatus"
	FieldEvent        = "Event"
	FieldDateTime     = "DateTime"
)

const (
	// PendingReturn is what the desk writes in FieldReturned for an open loan.
	PendingReturn = "Pending"

	StatusReturned = "Returned"

	// UnknownName stands in for a missing item name.
	UnknownName = "Unknown"
)
