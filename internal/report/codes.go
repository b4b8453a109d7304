package report

// Parse errors (line-scoped; abort the affected line).
const (
	CodeBracketMismatch     = "CSE001"
	CodeDuplicateBrackets   = "CSE002"
	CodeInvalidLevel        = "CSE003"
	CodeInvalidTopic        = "CSE004"
	CodeDuplicateTargetID   = "CSE005"
	CodeLevelRelationship   = "CSE006"
	CodeDuplicateWriter     = "CSE007"
	CodeInvalidNesting      = "CSE008"
	CodeInvalidMetadata     = "CSE009"
	CodeInvalidRelationship = "CSE010"
	CodeInvalidOption       = "CSE011"
)

// Validation errors (accumulated; block persistence).
const (
	CodeInvalidSpecField      = "CSV001"
	CodeUnsupportedDTD        = "CSV002"
	CodeInvalidBookType       = "CSV003"
	CodeEmptyBook             = "CSV004"
	CodeConflictingRevisions  = "CSV005"
	CodeMissingRelTarget      = "CSV006"
	CodeAmbiguousRelationship = "CSV007"
	CodeSelfRelationship      = "CSV008"
	CodeInitialContentRel     = "CSV009"
	CodeUnknownTag            = "CSV010"
	CodeUnknownType           = "CSV011"
	CodeUnknownWriter         = "CSV012"
	CodeDuplicateNewTopic     = "CSV013"
	CodeInvalidSequenceRel    = "CSV014"
	CodeLookupFailure         = "CSV015"
)

// Warnings (logged; never block persistence).
const (
	CodeUnknownOptionKey     = "CSW001"
	CodeUnknownMetadataKey   = "CSW002"
	CodeUnknownCommonContent = "CSW003"
)
