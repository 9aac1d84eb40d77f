package integration

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
)

// fixturePortal is a self-contained stand-in for the chart portal: a
// login form, a search page whose selects are repopulated by its own
// scripts, a step array that grows entry by entry with no completion
// signal, and cookie-gated chart images. It binds all interfaces so a
// containered browser and the host-side downloader both reach it
// through the same url.
type fixturePortal struct {
	Username string
	Password string

	listener net.Listener
	baseUrl  string

	mu       sync.Mutex
	sessions map[string]string
	nextId   int
}

// fixtureHost is the address the browser and the downloader use to
// reach the fixture. The containered browser sees the host through the
// default docker bridge gateway; a local browser just uses localhost.
func fixtureHost() string {
	if host, ok := os.LookupEnv("TEST_PORTAL_HOST"); ok {
		return host
	}
	if _, ok := os.LookupEnv("TEST_CHROME_WS"); ok {
		return "localhost"
	}
	return "172.17.0.1"
}

func startFixturePortal() (*fixturePortal, error) {
	listener, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		return nil, err
	}

	p := &fixturePortal{
		Username: "forecaster1",
		Password: "hunter2",
		listener: listener,
		sessions: map[string]string{},
	}
	port := listener.Addr().(*net.TCPAddr).Port
	p.baseUrl = fmt.Sprintf("http://%s:%d", fixtureHost(), port)

	mux := http.NewServeMux()
	mux.HandleFunc("/login.do", p.handleLogin)
	mux.HandleFunc("/logout.do", p.handleLogout)
	mux.HandleFunc("/search.do", p.handleSearch)
	mux.HandleFunc("/api/products", p.handleProducts)
	mux.HandleFunc("/api/steps", p.handleSteps)
	mux.HandleFunc("/dat/img/", p.handleImage)

	go http.Serve(listener, mux)
	return p, nil
}

func (p *fixturePortal) Close() {
	p.listener.Close()
}

func (p *fixturePortal) SearchUrl() string {
	return p.baseUrl + "/search.do"
}

func (p *fixturePortal) LoginUrl() string {
	return p.baseUrl + "/login.do"
}

func (p *fixturePortal) sessionUser(r *http.Request) string {
	cookie, err := r.Cookie("JSESSIONID")
	if err != nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[cookie.Value]
}

func (p *fixturePortal) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		if r.FormValue("loginId") == p.Username && r.FormValue("loginPw") == p.Password {
			p.mu.Lock()
			p.nextId++
			token := fmt.Sprintf("fixture-session-%d", p.nextId)
			p.sessions[token] = p.Username
			p.mu.Unlock()

			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: token, Path: "/"})
			http.Redirect(w, r, "/search.do", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/login.do", http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, loginPage)
}

func (p *fixturePortal) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("JSESSIONID")
	if err == nil {
		p.mu.Lock()
		delete(p.sessions, cookie.Value)
		p.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login.do", http.StatusFound)
}

func (p *fixturePortal) handleSearch(w http.ResponseWriter, r *http.Request) {
	user := p.sessionUser(r)
	if user == "" {
		http.Redirect(w, r, "/login.do", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, searchPage, user)
}

type fixtureProduct struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type fixtureCatalog struct {
	Products   []fixtureProduct `json:"products"`
	Categories []string         `json:"categories"`
	Types      []string         `json:"types"`
	Areas      []string         `json:"areas"`
}

type fixtureSteps struct {
	Title  string   `json:"title"`
	Imgs   []string `json:"imgs"`
	Labels []string `json:"labels"`
}

var fixtureCatalogs = map[string]fixtureCatalog{
	"10": {
		Products: []fixtureProduct{
			{Id: "11", Name: "Composite Chart", Category: "General"},
			{Id: "12", Name: "Significant Weather", Category: "General"},
		},
		Categories: []string{"General"},
		Types:      []string{"Composite"},
		Areas:      []string{"Asia"},
	},
	"11": {
		Products: []fixtureProduct{
			{Id: "41", Name: "Surface Analysis", Category: "Analysis"},
			{Id: "42", Name: "Surface Prognosis 24hr", Category: "Forecast"},
			{Id: "52", Name: "Delayed Jet Stream Analysis", Category: "Aux"},
		},
		Categories: []string{"Analysis", "Forecast"},
		Types:      []string{"Surface"},
		Areas:      []string{"Asia", "East Asia"},
	},
}

var fixtureStepData = map[string]fixtureSteps{
	"41": {
		Title: "Surface Analysis",
		Imgs: []string{
			"chart_000.png",
			"chart_001.png",
			"chart_002.png",
			"chart_003.png---T+072",
			"chart_004.png",
			"chart_005.png",
		},
		Labels: []string{
			"Mon 00:00", "Mon 06:00", "Mon 12:00",
			"unused", "Tue 00:00", "Tue 06:00",
		},
	},
	"52": {
		Title:  "Delayed Jet Stream Analysis",
		Imgs:   []string{"jet_000.png", "jet_001.png", "jet_002.png"},
		Labels: []string{"Mon 00:00", "Mon 12:00", "Tue 00:00"},
	},
}

func (p *fixturePortal) handleProducts(w http.ResponseWriter, r *http.Request) {
	if p.sessionUser(r) == "" {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return
	}
	catalog := fixtureCatalogs[r.URL.Query().Get("type")]
	if catalog.Products == nil {
		catalog = fixtureCatalog{Products: []fixtureProduct{}}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(catalog)
}

func (p *fixturePortal) handleSteps(w http.ResponseWriter, r *http.Request) {
	if p.sessionUser(r) == "" {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return
	}
	steps := fixtureStepData[r.URL.Query().Get("product")]
	if steps.Imgs == nil {
		steps = fixtureSteps{Imgs: []string{}, Labels: []string{}}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(steps)
}

// handleImage serves deterministic png-looking bytes, gated on the
// session cookie like the real portal's image host.
func (p *fixturePortal) handleImage(w http.ResponseWriter, r *http.Request) {
	if p.sessionUser(r) == "" {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return
	}

	body := make([]byte, 2048)
	copy(body, []byte("\x89PNG\r\n\x1a\n"))
	for i := 8; i < len(body); i++ {
		body[i] = byte(i % 251)
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(body)
}

const loginPage = `<!DOCTYPE html>
<html>
<head><title>Chart Portal Login</title></head>
<body>
<form action="/login.do" method="post">
	<input type="text" id="loginId" name="loginId" />
	<input type="password" id="loginPw" name="loginPw" />
	<button type="submit">Login</button>
</form>
</body>
</html>`

const searchPage = `<!DOCTYPE html>
<html>
<head><title>Chart Search</title></head>
<body>
<span id="userName">%s</span>
<button id="btnLogout">Logout</button>

<select id="prodType">
	<option value="10">Charts</option>
	<option value="11">Surface</option>
	<option value="12">Upper air</option>
</select>
<select id="searchCat"></select>
<select id="searchKind"></select>
<select id="searchArea"></select>
<select id="searchDate">
	<option value="2024-01-15">2024-01-15</option>
	<option value="2024-01-14">2024-01-14</option>
</select>
<select id="prodList"></select>

<div id="prodTitle"></div>
<div id="stepList"></div>

<script>
window.imgArr = [];
window.imgBase = location.origin + "/dat/img/";

function fill(selector, values) {
	const sel = document.querySelector(selector);
	sel.innerHTML = "";
	values.forEach((value) => {
		const option = document.createElement("option");
		option.value = value;
		option.textContent = value;
		sel.appendChild(option);
	});
}

function fn_loadProducts() {
	const code = document.querySelector("#prodType").value;
	fetch("/api/products?type=" + code)
		.then((res) => res.json())
		.then((data) => {
			setTimeout(() => {
				const list = document.querySelector("#prodList");
				list.innerHTML = "";
				const byCategory = {};
				data.products.forEach((p) => {
					(byCategory[p.category] = byCategory[p.category] || []).push(p);
				});
				Object.keys(byCategory).forEach((category) => {
					const group = document.createElement("optgroup");
					group.setAttribute("label", category);
					byCategory[category].forEach((p) => {
						const option = document.createElement("option");
						option.value = p.id;
						option.textContent = p.name;
						group.appendChild(option);
					});
					list.appendChild(group);
				});
				fill("#searchCat", data.categories || []);
				fill("#searchKind", data.types || []);
				fill("#searchArea", data.areas || []);
			}, 80);
		});
}

function fn_loadImgList() {
	const id = document.querySelector("#prodList").value;
	if (!id) return;
	fetch("/api/steps?product=" + id)
		.then((res) => res.json())
		.then((data) => {
			document.querySelector("#prodTitle").textContent = data.title;
			const stepList = document.querySelector("#stepList");
			stepList.innerHTML = "";
			const push = (i) => {
				if (i >= data.imgs.length) return;
				window.imgArr.push(data.imgs[i]);
				const label = document.createElement("div");
				label.className = "step-label";
				label.textContent = data.labels[i];
				stepList.appendChild(label);
				setTimeout(() => push(i + 1), 40);
			};
			push(0);
		});
}

document.querySelector("#prodType").addEventListener("change", fn_loadProducts);
document.querySelector("#prodList").addEventListener("change", function () {
	// product 52 models the portal's intermittently dead change handler
	if (this.value === "52") return;
	fn_loadImgList();
});
document.querySelector("#btnLogout").addEventListener("click", () => {
	location.href = "/logout.do";
});
</script>
</body>
</html>`
