package chat

// ThemeID identifies the topic bucket a conversation belongs to.
type ThemeID string

const (
	ThemeGeneral  ThemeID = "general"
	ThemeSchool   ThemeID = "school"
	ThemeFriends  ThemeID = "friends"
	ThemeHome     ThemeID = "home"
	ThemeFeelings ThemeID = "feelings"
	ThemeLove     ThemeID = "love"
	ThemeFreetime ThemeID = "freetime"
	ThemeFuture   ThemeID = "future"
	ThemeSelf     ThemeID = "self"
	ThemeBullying ThemeID = "bullying"
)

var themeNames = map[ThemeID]string{
	ThemeGeneral:  "Algemeen",
	ThemeSchool:   "School",
	ThemeFriends:  "Vrienden",
	ThemeHome:     "Thuis",
	ThemeFeelings: "Gevoelens",
	ThemeLove:     "Liefde",
	ThemeFreetime: "Vrije tijd",
	ThemeFuture:   "Toekomst",
	ThemeSelf:     "Jezelf",
	ThemeBullying: "Pesten",
}

// Themes returns every known theme in display order.
func Themes() []ThemeID {
	return []ThemeID{
		ThemeGeneral, ThemeSchool, ThemeFriends, ThemeHome, ThemeFeelings,
		ThemeLove, ThemeFreetime, ThemeFuture, ThemeSelf, ThemeBullying,
	}
}

// Valid reports whether t is a known theme.
func (t ThemeID) Valid() bool {
	_, ok := themeNames[t]
	return ok
}

// DisplayName returns the Dutch label shown to users.
func (t ThemeID) DisplayName() string {
	if name, ok := themeNames[t]; ok {
		return name
	}
	return string(t)
}
