package consts

const (
	InstallmentsCollection         = "Installments"
	MembersCollection              = "Members"
	CollectionHistoryCollection    = "CollectionHistory"
	SavingsCollection              = "Savings"
	CollectorsCollection           = "Collectors"
	DeductionsInProgressCollection = "DeductionsInProgress"
)
