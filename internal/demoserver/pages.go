package demoserver

import (
	"fmt"
	"strings"
)

// PageVersion is one rendition of a demo page.
type PageVersion struct {
	HTML        string
	ContentType string
	Headers     map[string]string
}

// PageDefinition holds all versions of a single page. Version 1 is the
// manipulative rendition, version 2 the fair one.
type PageDefinition struct {
	Path        string
	Description string

	// Patterns lists the dark-pattern labels version 1 exhibits.
	Patterns []string
	Versions map[int]PageVersion
}

const (
	VersionDark = 1
	VersionFair = 2
)

// GetAllPages returns all demo page definitions.
func GetAllPages() []PageDefinition {
	return []PageDefinition{
		getHomePage(),
		getShopPage(),
		getSettingsPage(),
	}
}

// FixtureHTML returns the markup of a page version.
func FixtureHTML(path string, version int) (string, bool) {
	for _, p := range GetAllPages() {
		if p.Path != path {
			continue
		}
		v, ok := p.Versions[version]
		return v.HTML, ok
	}
	return "", false
}

func toggles(names ...string) string {
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "      <label><input type=\"checkbox\" name=%q checked> %s</label>\n",
			strings.ToLower(strings.ReplaceAll(n, " ", "_")), n)
	}
	return b.String()
}

const pageHead = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>%s</title>
  <style>
    body { font-family: Georgia, serif; margin: 0; background: #ffffff; color: #222222; }
    .btn { padding: 10px 18px; border: 0; border-radius: 4px; }
    #cookie-banner { position: fixed; bottom: 0; left: 0; right: 0; padding: 24px; box-shadow: 0 -2px 8px rgba(0,0,0,.2); }
  </style>
</head>
<body>
`

// ===== HOME PAGE =====
func getHomePage() PageDefinition {
	article := `  <header><h1>The Daily Ledger</h1><nav><a href="/shop">Shop</a> <a href="/settings">Account</a></nav></header>
  <main>
    <article>
      <h2>Markets rally after central bank holds rates</h2>
      <p>Stocks climbed on Tuesday as investors welcomed the decision to keep borrowing costs unchanged.</p>
    </article>
  </main>
`
	return PageDefinition{
		Path:        "/",
		Description: "News front page with a cookie banner and a newsletter modal",
		Patterns: []string{
			"preselected_invasive_default", "visual_distraction", "emotional_steering",
			"hidden_in_plain_sight", "misleading_button", "overwhelming_options", "ambiguous_wording",
		},
		Versions: map[int]PageVersion{
			VersionDark: {
				HTML: fmt.Sprintf(pageHead, "The Daily Ledger") + article + `  <div id="cookie-banner" class="cookie-consent" style="background:#ffffff">
    <p>We and our 842 partners value your privacy. Uncheck the boxes below if you do not want us to not share your data with partners.</p>
    <form id="cookie-preferences">
      <label><input type="checkbox" name="necessary" checked disabled> Strictly necessary</label>
` + toggles("Analytics", "Personalised advertising", "Audience measurement", "Social media",
					"Content personalisation", "Precise geolocation", "Device scanning", "Ad performance",
					"Market research", "Product development", "Partner sharing") + `    </form>
    <button class="btn btn-primary" style="background:#0a66c2;color:#ffffff;font-size:18px">Accept all</button>
    <a href="#" class="reject-link" style="font-size:9px;color:#dddddd">Reject all</a>
  </div>
  <div id="newsletter-modal" role="dialog" aria-modal="true">
    <h3>Stay ahead of the markets</h3>
    <p>Join 2 million readers who get our morning briefing.</p>
    <button class="btn" style="background:#1d8348;color:#ffffff">Got it</button>
    <a href="#" style="color:#555555">No, I prefer to stay uninformed</a>
  </div>
</body>
</html>`,
			},
			VersionFair: {
				HTML: fmt.Sprintf(pageHead, "The Daily Ledger") + article + `  <div id="cookie-banner" class="cookie-consent" style="background:#ffffff">
    <p>We use cookies to measure our audience and to show ads. Choose which categories to allow. You can change your choices at any time from the page footer.</p>
    <form id="cookie-preferences">
      <label><input type="checkbox" name="necessary" checked disabled> Strictly necessary</label>
      <label><input type="checkbox" name="analytics"> Analytics</label>
      <label><input type="checkbox" name="advertising"> Personalised advertising</label>
    </form>
    <button class="btn" style="background:#0a66c2;color:#ffffff;font-size:16px">Accept all</button>
    <button class="btn" style="background:#0a66c2;color:#ffffff;font-size:16px">Reject all</button>
    <button class="btn" style="background:#0a66c2;color:#ffffff;font-size:16px">Save choices</button>
  </div>
  <div id="newsletter-modal" role="dialog" aria-modal="true">
    <h3>Stay ahead of the markets</h3>
    <p>Get our morning briefing by email.</p>
    <button class="btn" style="background:#1d8348;color:#ffffff">Subscribe</button>
    <button class="btn" style="background:#1d8348;color:#ffffff">No thanks</button>
  </div>
</body>
</html>`,
			},
		},
	}
}

// ===== SHOP PAGE =====
func getShopPage() PageDefinition {
	product := `  <header><h1>Brightside Outfitters</h1></header>
  <main>
    <h2>Trail Runner 3</h2>
    <p>Lightweight running shoe with a grippy outsole.</p>
    <button class="btn">Add to basket</button>
  </main>
`
	return PageDefinition{
		Path:        "/shop",
		Description: "Shop product page with a marketing consent popup",
		Patterns:    []string{"preselected_invasive_default", "emotional_steering"},
		Versions: map[int]PageVersion{
			VersionDark: {
				HTML: fmt.Sprintf(pageHead, "Brightside Outfitters") + product + `  <div id="marketing-consent" role="dialog">
    <p>Get early access to sales and personalised offers.</p>
    <label><input type="checkbox" id="partner-offers" checked> Send me offers from selected partners</label>
    <button class="btn" style="background:#c0392b;color:#ffffff">Yes, count me in</button>
    <button class="btn" style="background:#eeeeee;color:#333333">No thanks, I like paying full price</button>
  </div>
</body>
</html>`,
			},
			VersionFair: {
				HTML: fmt.Sprintf(pageHead, "Brightside Outfitters") + product + `  <div id="marketing-consent" role="dialog">
    <p>Get early access to sales and personalised offers.</p>
    <label><input type="checkbox" id="partner-offers"> Send me offers from selected partners</label>
    <button class="btn" style="background:#c0392b;color:#ffffff">Sign me up</button>
    <button class="btn" style="background:#c0392b;color:#ffffff">No thanks</button>
  </div>
</body>
</html>`,
			},
		},
	}
}

// ===== SETTINGS PAGE =====
func getSettingsPage() PageDefinition {
	return PageDefinition{
		Path:        "/settings",
		Description: "Privacy settings centre",
		Patterns:    []string{"overwhelming_options", "hidden_in_plain_sight"},
		Versions: map[int]PageVersion{
			VersionDark: {
				HTML: fmt.Sprintf(pageHead, "Privacy centre") + `  <section id="consent-settings">
    <h1>Your privacy choices</h1>
    <form>
` + strings.ReplaceAll(toggles("Store and access information", "Basic ads", "Ads profile", "Personalised ads",
					"Content profile", "Personalised content", "Ad measurement", "Content measurement",
					"Audience insights", "Product improvement", "Fraud prevention", "Technical delivery",
					"Link devices", "Identify devices"), " checked>", ">") + `    </form>
    <button class="btn" style="background:#0a66c2;color:#ffffff">Allow all</button>
    <button class="btn" style="background:#ffffff;color:#f4f4f4;font-size:10px">Save my choices</button>
  </section>
</body>
</html>`,
			},
			VersionFair: {
				HTML: fmt.Sprintf(pageHead, "Privacy centre") + `  <section id="consent-settings">
    <h1>Your privacy choices</h1>
    <form>
      <label><input type="checkbox" name="measurement"> Audience measurement</label>
      <label><input type="checkbox" name="ads"> Advertising</label>
      <label><input type="checkbox" name="content"> Personalised content</label>
    </form>
    <button class="btn" style="background:#0a66c2;color:#ffffff">Allow all</button>
    <button class="btn" style="background:#0a66c2;color:#ffffff">Reject all</button>
    <button class="btn" style="background:#0a66c2;color:#ffffff">Save my choices</button>
  </section>
</body>
</html>`,
			},
		},
	}
}
