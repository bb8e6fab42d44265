package export

// Service renders a note to a downloadable PDF.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export renders the note and prints it through headless Chrome. The caller
// is responsible for ownership checks and for truncating any extracted
// document tail before handing over the content.
func (s *Service) Export(note NoteData) (*Result, error) {
	author := note.OwnerName
	if author == "" {
		author = note.OwnerEmail
	}

	html, err := RenderNoteHTML(TemplateData{
		Title:     note.Title,
		Content:   note.Content,
		Author:    author,
		CreatedAt: note.CreatedAt.Format("Jan 2, 2006"),
	})
	if err != nil {
		return nil, err
	}

	return exportPDF(html, note.Title)
}
