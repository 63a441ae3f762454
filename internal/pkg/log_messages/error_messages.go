package log_messages

const (
	FailureInPubsubConsumerCreation = "failed to create Pubsub consumer: %v"
	PubsubErrorConsuming            = "pubsub consumer error in consuming: %v"
	ErrorUnmarshalingPubsubMessage  = "error unmarshaling Pubsub message"
	ServerStartFailure              = "failed to start server: %v"
	ServerShutdown                  = "Shutting down server..."
	ServerForcedShutdown            = "Server forced to shutdown: %v"
	ServerExiting                   = "Server exiting"
	FailedLoadingConfiguration      = "Failed to load configuration: %v"
	CleanupStarted                  = "Starting cleanup of resources..."
	CleanupCompleted                = "All resources cleaned up successfully"
	InvalidRequestBody              = "Invalid request body"
	RequestFailed                   = "Request failed"
	FailedInitializingApp           = "Failed to initialize app"
	AppStoppedWithError             = "App stopped with error"

	// Startup
	FailedSettingUpTracing           = "Failed to set up tracing"
	FailureInPubsubPublisherCreation = "Failure in PubSub publisher creation"
	FailureInKafkaProducerCreation   = "Failure in Kafka producer creation"
	FailedConnectingMongoDB          = "Failed to connect to MongoDB"
	FailedEnsuringMongoIndexes       = "Failed to ensure MongoDB indexes"
	FailedConnectingRedis            = "Failed to connect to Redis"
	FailedCreatingGCSClient          = "Failed to create GCS client"
	LedgerServiceStarted             = "Installment ledger started"
	RequestCompleted                 = "Request completed"

	// Ledger operations
	InstallmentSeriesCreated    = "Installment series created"
	InstallmentCollected        = "Installment collection applied"
	OverpaymentCascaded         = "Overpayment cascaded to next installment"
	OverpaymentFoldedIntoTarget = "Leftover overpayment folded into target installment"
	DuplicateCollectionRejected = "Duplicate collection rejected"
	LedgerInvariantBroken       = "Ledger invariant broken, transaction aborted"
	StaleRevisionRetry          = "Installment revision changed concurrently, retrying"
	DueDatesRecalculated        = "Due dates recalculated for loan group"
	SavingsDeducted             = "Installment paid from earmarked savings"
	SavingsTransferred          = "Earmarked savings transferred to active loan group"
	SweepMemberSkipped          = "Member already being swept by another worker"
	SweepCompleted              = "Pending deduction sweep completed"
	PostCommitPublishFailed     = "Post-commit publish failed, ledger change kept"

	// Ledger warnings
	MemberAggregateDrifted           = "Member aggregate drifted from ledger"
	ActiveLoanGroupCapReached        = "Active loan group cap reached"
	FailedReleasingLedgerLock        = "Failed to release ledger lock"
	NoEarmarkedSavingsForOverdue     = "No earmarked savings available for overdue installment"
	CompletionTransferFailed         = "Completion transfer failed"
	NoSavingsTransferredOnCompletion = "No savings transferred on completion"
	FailedLoadingOverdueInstallments = "Failed to load overdue installments"
	FailedClearingDeductionMarker    = "Failed to clear deduction marker"

	// Collection intake
	InvalidCollectionMessageDropped = "Invalid collection message dropped"
	CollectionMessageAckedNoChange  = "Collection message acknowledged without ledger change"
	CollectionMessageFailed         = "Collection message failed"
	LedgerEventPublished            = "Published ledger event"

	// Database operation errors
	ErrorUpdatingHistoryDocument = "Error updating collection history document"
	SuccessUpdatedHistoryDoc     = "Successfully updated collection history document"
	InvalidDurationFormat        = "Invalid duration format"
	FailedToGetUnpublishedEvents = "Failed to get unpublished ledger events"
	InvalidObjectID              = "Invalid ObjectID"
	FailedToUpdateKafkaFlag      = "Failed to update publishedToKafka flag"
	ErrorDecodingDocument        = "Error decoding document"
	ErrorPublishingToKafka       = "Error publishing ledger event to Kafka"

	// Kafka
	KafkaProducerCreated            = "Kafka producer created"
	NoWorkerConfigured              = "No worker configured for kafka retry"
	CursorIsNilNoDocumentsToProcess = "Cursor is nil, no documents to process"
	ErrorClosingCursor              = "Error closing cursor"
	NoUnpublishedEntries            = "No unpublished ledger events in window"
	CursorError                     = "cursor error: %w"
	ErrorChannelFull                = "Error channel full, logging error instead"
	KafkaRetryProcessingCompleted   = "Kafka retry processing completed"
	ErrorUpdatingKafkaFlag          = "Error updating publishedToKafka flag"
	FailedToWriteRecordToCSV        = "Failed to write record to CSV"

	// GCS / PubSub
	PubsubPublisherCreated      = "PubSub publisher created"
	ErrorClosingGCSClient       = "Error closing GCS client"
	ErrorMarshallingJSON        = "Error marshalling JSON"
	ErrorUploadingToGCSBucket   = "Error uploading to GCS bucket"
	ErrorClosingGCSWriter       = "Error closing GCS writer"
	UploadedToGCSBucket         = "Uploaded object to GCS bucket"
	GCSClientClosedSuccessfully = "GCS client closed successfully"
	OTLPConnectionError         = "OTLP connection error"
)
