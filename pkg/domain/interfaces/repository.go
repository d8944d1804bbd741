package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Entry() EntryRepository
	Tag() TagRepository

	Close() error
}
