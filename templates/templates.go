package templates

import _ "embed"

var (
	//go:embed resource/start.txt
	Start string
	//go:embed resource/help.txt
	Help string
	//go:embed resource/helpLine.txt
	HelpLine string
	//go:embed resource/credits.txt
	Credits string
	//go:embed resource/accessDenied.txt
	AccessDenied string
	//go:embed resource/editIntro.txt
	EditIntro string
	//go:embed resource/settingsMenu.txt
	SettingsMenu string
	//go:embed resource/settingLine.txt
	SettingLine string
	//go:embed resource/chosenUpdate.txt
	ChosenUpdate string
	//go:embed resource/askTime.txt
	AskTime string
	//go:embed resource/badTime.txt
	BadTime string
	//go:embed resource/timeChanged.txt
	TimeChanged string
	//go:embed resource/cancelled.txt
	Cancelled string
	//go:embed resource/cancelledCommand.txt
	CancelledCommand string
	//go:embed resource/nothingToCancel.txt
	NothingToCancel string
	//go:embed resource/weather.txt
	Weather string
	//go:embed resource/quote.txt
	Quote string
	//go:embed resource/fact.txt
	Fact string
)
